package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-runtime/internal/rpc"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used only by the HTTP layer. Procedure failures reuse the
// rpc codes.
const (
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeNotFound     = rpc.CodeNotFound
	ErrCodeBadRequest   = rpc.CodeBadRequest
	ErrCodeInternal     = rpc.CodeInternal
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeCallError writes the response for a failed procedure call.
func writeCallError(w http.ResponseWriter, err error) {
	code := rpc.ErrorCode(err)
	writeError(w, statusForCode(code), code, err.Error())
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// statusForCode maps an rpc error code to its HTTP status.
func statusForCode(code string) int {
	switch code {
	case rpc.CodeBadRequest, rpc.CodeValidation:
		return http.StatusBadRequest
	case rpc.CodeMethodNotFound, rpc.CodeNotFound:
		return http.StatusNotFound
	case rpc.CodeConflict:
		return http.StatusConflict
	case rpc.CodeUnavailable:
		return http.StatusServiceUnavailable
	case rpc.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
