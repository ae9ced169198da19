package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"semsql/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindParse, domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindSemanticValidation,
		domain.KindSubstitution,
		domain.KindMissingParameter,
		domain.KindInvalidParameter:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the JSON body returned for every failed request.
type Error struct {
	Code     int      `json:"code"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

func errorBody(err error) Error {
	body := Error{
		Code:    httpStatusFromDomainError(err),
		Kind:    string(domain.KindOf(err)),
		Message: err.Error(),
	}
	var semErr *domain.SemanticValidationError
	if errors.As(err, &semErr) {
		body.Messages = semErr.Messages
	}
	// Internal errors may carry driver or runtime detail.
	if body.Code == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody(err)
	writeJSON(w, body.Code, body)
}
