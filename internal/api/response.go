package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/boro/internal/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response for a status the handler chose itself.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message, Code: string(statusCode(status))})
}

// writeError maps err onto a response. Domain errors keep their code and
// details; anything else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) && domainErr.Code != errors.CodeInternal {
		jsonResponse(w, domainErr.HTTPStatus(), errorBody{
			Error:   domainErr.Message,
			Code:    string(domainErr.Code),
			Details: domainErr.Details,
		})
		return
	}

	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	jsonError(w, http.StatusInternalServerError, "internal error")
}

func statusCode(status int) errors.Code {
	switch status {
	case http.StatusNotFound:
		return errors.CodeNotFound
	case http.StatusUnauthorized:
		return errors.CodeUnauthorized
	case http.StatusForbidden:
		return errors.CodeForbidden
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return errors.CodeValidation
	case http.StatusConflict:
		return errors.CodeConflict
	case http.StatusTooManyRequests:
		return errors.CodeRateLimited
	default:
		return errors.CodeInternal
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(target); err != nil {
		return errors.Validation("invalid request body")
	}
	return nil
}
