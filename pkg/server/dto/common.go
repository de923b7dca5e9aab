// Package dto defines the request and response shapes of the HTTP API.
package dto

// Result is the envelope every endpoint responds with. Data is set on
// success, Error on failure, and clients should branch on Success rather
// than sniffing which of the two is present.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps a payload in a successful envelope.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Err wraps an error message in a failed envelope.
func Err(message string) Result {
	return Result{Success: false, Error: message}
}
