// Package shared holds the JSON envelope helpers every handler uses, so
// error translation lives in one place.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "custodia/pkg/domain-errors"
)

// ToHTTPStatus maps a domain error code to its HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeAlreadyExists, dErrors.CodeDuplicate, dErrors.CodeConflict, dErrors.CodeReplayRejected, dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeExpired:
		return http.StatusGone
	case dErrors.CodeInsufficientStake, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders the JSON error envelope for a coded error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}

// WriteJSON renders a success body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
