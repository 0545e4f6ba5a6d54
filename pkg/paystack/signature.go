// Package paystack verifies that webhook deliveries came from the payment provider.
package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

const (
	// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
	SignatureHeader = "x-paystack-signature"
	// SignatureHeaderAlias is accepted for providers proxied through a gateway.
	SignatureHeaderAlias = "x-provider-signature"
)

// ErrInvalidSignature covers a missing, malformed, or mismatched signature.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier checks webhook signatures with a server-held secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify compares signature against HMAC-SHA512(secret, body) in constant time.
// body must be the raw bytes exactly as received.
func (v *Verifier) Verify(body []byte, signature string) error {
	if v == nil || len(v.secret) == 0 {
		return ErrInvalidSignature
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) != sha512.Size {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, v.compute(body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature for body. Used by tests and local tooling.
func (v *Verifier) Sign(body []byte) string {
	return hex.EncodeToString(v.compute(body))
}

func (v *Verifier) compute(body []byte) []byte {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureFromHeader reads the provider header, falling back to the alias.
func SignatureFromHeader(h http.Header) string {
	if sig := h.Get(SignatureHeader); sig != "" {
		return sig
	}
	return h.Get(SignatureHeaderAlias)
}
