package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KAsare1/Gigstage-server/service/apperr"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: http.StatusText(code), Message: message})
}

// RespondWithAppError maps a service error to its status and body.
// Unexpected errors are logged and hidden from the caller.
func RespondWithAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := ErrorResponse{Error: apperr.Kind(err), Message: err.Error()}

	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) {
		body.Fields = vErr.FieldErrors
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		body.Message = "internal error"
	}
	RespondWithJSON(w, status, body)
}

// DecodeJSON decodes the request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("body", "invalid request body: "+err.Error())
	}
	return nil
}
