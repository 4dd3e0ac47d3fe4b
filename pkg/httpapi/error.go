package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jacksonlee411/grc-console/pkg/constants"
)

const RequestIDHeader = "X-Request-ID"

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// RequestID returns the id the logging middleware assigned to r. Outside that
// middleware the X-Request-ID header is used, and a fresh id is generated
// and echoed back when there is none.
func RequestID(w http.ResponseWriter, r *http.Request) string {
	if r == nil {
		return ""
	}
	if id, ok := r.Context().Value(constants.RequestIDKey).(string); ok && id != "" {
		return id
	}
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" {
		id = uuid.NewString()
		if w != nil {
			w.Header().Set(RequestIDHeader, id)
		}
	}
	return id
}

// WriteRequestError writes an ErrorEnvelope carrying the request id in meta.
func WriteRequestError(w http.ResponseWriter, r *http.Request, status int, code, message string) error {
	return WriteError(w, status, code, message, map[string]string{
		"request_id": RequestID(w, r),
	})
}
