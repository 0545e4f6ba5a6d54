package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
)

// Query reads typed query parameters and collects every problem, so one
// request reports all bad parameters at once through Err.
type Query struct {
	values   url.Values
	problems map[string]string
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query(), problems: map[string]string{}}
}

// String returns the trimmed value of key, rejecting values over maxLen
// bytes when maxLen is positive.
func (q *Query) String(key string, maxLen int) string {
	v := strings.TrimSpace(q.values.Get(key))
	if maxLen > 0 && len(v) > maxLen {
		q.problems[key] = fmt.Sprintf("must be at most %d characters", maxLen)
		return ""
	}
	return v
}

// Int returns def when key is absent.
func (q *Query) Int(key string, def, min, max int) int {
	raw := q.String(key, 0)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		q.problems[key] = "must be numeric"
		return def
	case n < min || n > max:
		q.problems[key] = fmt.Sprintf("must be between %d and %d", min, max)
		return def
	}
	return n
}

// Err is nil when every read succeeded.
func (q *Query) Err() error {
	if len(q.problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(q.problems)
}
