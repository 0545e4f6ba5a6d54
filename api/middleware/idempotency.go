package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wavelength-fm/station-backend/api/responses"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	pkgredis "github.com/wavelength-fm/station-backend/pkg/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	maxIdempotencyKey  = 255
	defaultReplayTTL   = 24 * time.Hour
	defaultInFlightTTL = time.Minute
)

// IdempotencyPolicy configures replay for one route.
type IdempotencyPolicy struct {
	// ReplayTTL is how long a settled response is replayed.
	ReplayTTL time.Duration
	// InFlightTTL bounds the claim held while the first request runs.
	InFlightTTL time.Duration
	// Required rejects requests that omit the header.
	Required bool
}

// replay is what gets stored for a settled request.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first settled response for a repeated
// Idempotency-Key on the route it is mounted on. A reused key with a
// different body is IDEMPOTENCY_KEY_REUSED, and so is a retry that races
// the first request. 5xx responses are not stored so clients may retry them.
func Idempotency(store pkgredis.IdempotencyStore, policy IdempotencyPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	if policy.ReplayTTL <= 0 {
		policy.ReplayTTL = defaultReplayTTL
	}
	if policy.InFlightTTL <= 0 {
		policy.InFlightTTL = defaultInFlightTTL
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "" && policy.Required:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case clientKey == "":
				next.ServeHTTP(w, r)
				return
			case len(clientKey) > maxIdempotencyKey:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				// MaxBody trips here before the handler sees the body
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large"))
					return
				}
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])
			scope := r.Method + "|" + r.URL.Path + "|" + AdminSubjectFromContext(ctx)
			recordKey := store.IdempotencyKey(scope, clientKey)
			claimKey := store.IdempotencyKey(scope+"|inflight", clientKey)

			stored, err := store.Get(ctx, recordKey)
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			default:
				var prior replay
				if err := json.Unmarshal([]byte(stored), &prior); err != nil {
					fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != requestHash {
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.writeTo(w)
				return
			}

			claimed, err := store.SetNX(ctx, claimKey, requestHash, policy.InFlightTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				fail(pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(ctx, claimKey); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
			}()

			capture := &responseCapture{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			status := defaultStatus(capture.status)
			if status >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(replay{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, recordKey, string(payload), policy.ReplayTTL)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func (p replay) writeTo(w http.ResponseWriter) {
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(p.Status)
	_, _ = w.Write(p.Body)
}

// responseCapture tees the body so it can be stored for replay.
type responseCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}
