package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sk_test_station"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	for _, body := range [][]byte{
		[]byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`),
		[]byte(`{ "event" : "charge.failed" }`),
		{},
	} {
		require.NoError(t, v.Verify(body, sign(testSecret, body)))
		require.NoError(t, v.Verify(body, strings.ToUpper(sign(testSecret, body))))
		assert.Equal(t, sign(testSecret, body), v.Sign(body))
	}
}

func TestVerifyRejectsEveryBodyBitFlip(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	sig := sign(testSecret, body)

	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 1 << bit
			require.ErrorIsf(t, v.Verify(mutated, sig), ErrInvalidSignature, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifyRejectsEverySignatureBitFlip(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	body := []byte(`{"event":"charge.success"}`)
	raw, err := hex.DecodeString(sign(testSecret, body))
	require.NoError(t, err)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			require.ErrorIsf(t, v.Verify(body, hex.EncodeToString(mutated)), ErrInvalidSignature, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifyRejectsMalformedSignatures(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	body := []byte(`{}`)

	for _, sig := range []string{"", "   ", "not-hex", sign(testSecret, body)[:64], sign("other-secret", body)} {
		assert.ErrorIs(t, v.Verify(body, sig), ErrInvalidSignature)
	}

	var nilVerifier *Verifier
	assert.ErrorIs(t, nilVerifier.Verify(body, sign(testSecret, body)), ErrInvalidSignature)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("  ")
	require.Error(t, err)
}

func TestSignatureFromHeader(t *testing.T) {
	h := http.Header{}
	assert.Empty(t, SignatureFromHeader(h))

	h.Set(SignatureHeaderAlias, "alias")
	assert.Equal(t, "alias", SignatureFromHeader(h))

	h.Set(SignatureHeader, "primary")
	assert.Equal(t, "primary", SignatureFromHeader(h))
}
