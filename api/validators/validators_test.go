package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
)

type sampleBody struct {
	Amount *int64  `json:"amount" validate:"required,gt=0"`
	Email  *string `json:"email" validate:"omitempty,email"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0,"email":"nope"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["amount"])
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5,"admin":true}`))
	var body sampleBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsOversizedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":123456789}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 4)
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestQueryCollectsProblems(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=900&cursor="+strings.Repeat("c", 20), nil)
	q := NewQuery(req)

	assert.Equal(t, 25, q.Int("limit", 10, 1, 500))
	assert.Equal(t, 10, q.Int("missing", 10, 1, 500))
	require.NoError(t, q.Err())

	assert.Equal(t, 10, q.Int("bad", 10, 1, 500))
	assert.Equal(t, 10, q.Int("big", 10, 1, 500))
	assert.Empty(t, q.String("cursor", 8))

	err := q.Err()
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be numeric", details["bad"])
	assert.Equal(t, "must be between 1 and 500", details["big"])
	assert.Equal(t, "must be at most 8 characters", details["cursor"])
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var body sampleBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	assert.Equal(t, "request body is empty", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5}{"amount":6}`)), &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeOptional(t *testing.T) {
	blank := "   "
	assert.Nil(t, SanitizeOptional(nil, 10))
	assert.Nil(t, SanitizeOptional(&blank, 10))

	long := "  abcdefghijkl  "
	got := SanitizeOptional(&long, 5)
	require.NotNil(t, got)
	assert.Equal(t, "abcde", *got)
}

func TestSanitizeStringCountsRunesAndDropsControls(t *testing.T) {
	assert.Equal(t, "Ad\u00e9b\u00e1", SanitizeString(" Ad\u00e9\x00b\u00e1\n", 0))
	assert.Equal(t, "\u00d6l\u00e1", SanitizeString("\u00d6l\u00e1\u00d6l\u00e1", 3))
	assert.Equal(t, "ab", SanitizeString("ab cd", 3))
}
