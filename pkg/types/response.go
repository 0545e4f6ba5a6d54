// Package types holds wire shapes shared by the HTTP layer.
package types

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// RequestID echoes X-Request-Id so operators can find the log line.
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusEnvelope acknowledges a provider callback: {"status":"success"}.
type StatusEnvelope struct {
	Status string `json:"status"`
}
