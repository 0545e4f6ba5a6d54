package middleware

import (
	"net/http"
	"time"

	"github.com/wavelength-fm/station-backend/pkg/logger"
)

// quietPaths are polled by probes and scrapers; they log at debug.
var quietPaths = map[string]struct{}{
	"/health/live":  {},
	"/health/ready": {},
	"/metrics":      {},
}

// Logging writes one line per request once the handler returns. Query
// strings are left out because list filters can carry donor emails.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":    r.Method,
				"path":      r.URL.Path,
				"client_ip": clientIP(r),
			})
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			status := defaultStatus(rec.status)
			ctx = logg.WithFields(ctx, map[string]any{
				"route":       metricRoute(r),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch _, quiet := quietPaths[r.URL.Path]; {
			case status >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.failed")
			case quiet:
				logg.Debug(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}
