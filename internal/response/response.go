// Package response holds the stable error codes and the JSON envelope shared
// by every handler: {success, message, error?, ...payload}.
package response

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is the machine-readable failure code carried in the `error` field.
type ErrorCode string

const (
	CodeConfiguration        ErrorCode = "CONFIGURATION_ERROR"
	CodeMissingAPIKey        ErrorCode = "MISSING_API_KEY"
	CodeInvalidAPIKey        ErrorCode = "INVALID_API_KEY"
	CodeUnauthenticated      ErrorCode = "UNAUTHENTICATED"
	CodeInsufficientRole     ErrorCode = "INSUFFICIENT_ROLE"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeInvalidEmail         ErrorCode = "INVALID_EMAIL"
	CodeUserExists           ErrorCode = "USER_EXISTS"
	CodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	CodeAdminDeleteForbidden ErrorCode = "ADMIN_DELETE_FORBIDDEN"
	CodeDeleteFailed         ErrorCode = "DELETE_FAILED"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Failure is the body of every failed request.
type Failure struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Error   ErrorCode `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a Failure envelope.
func WriteError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	WriteJSON(w, status, Failure{Success: false, Message: message, Error: code})
}

// WriteInternal writes the generic 500 envelope; the cause never reaches the client.
func WriteInternal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Something went wrong")
}
