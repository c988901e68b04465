package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"requestId"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteError writes the error envelope, tagged with the chi request id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: ErrorBody{
		Code:      code,
		Message:   msg,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}})
}
