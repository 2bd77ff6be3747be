package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/openhouse-labs/tour-scheduling-api/internal/app/tours"
)

type errorResponse struct {
	Code      string                    `json:"code"`
	Message   string                    `json:"message"`
	Field     nullable.Nullable[string] `json:"field,omitempty"`
	RequestID nullable.Nullable[string] `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, field string) {
	er := errorResponse{Code: code, Message: message}
	if field != "" {
		er.Field = nullable.NewNullableWithValue(field)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.RequestID = nullable.NewNullableWithValue(rid)
	}
	writeJSON(w, status, er)
}

// writeServiceError maps a booking-engine failure to its transport response.
// Anything that is not a typed *tours.Error is an internal fault.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *tours.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Field)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", "")
}
