package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-verify/internal/application/auth"
	"github.com/go-api-verify/internal/domain"
	"github.com/go-api-verify/internal/pkg/validate"
	"github.com/go-api-verify/internal/transport/http/middleware"
)

// Error codes returned in the envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeCodeInvalid        = "CODE_INVALID"
	CodeEmailExists        = "EMAIL_ALREADY_EXISTS"
	CodePhoneExists        = "PHONE_ALREADY_EXISTS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// writeServiceError maps a service error onto status and code. Order matters:
// the auth errors also wrap generic domain sentinels.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, r, http.StatusBadRequest, CodeValidation, "Validation failed", verr.Fields)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusBadRequest, CodeTokenInvalid, auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrInvalidCode):
		writeError(w, r, http.StatusBadRequest, CodeCodeInvalid, auth.ErrInvalidCode.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, r, http.StatusConflict, CodeEmailExists, auth.ErrEmailTaken.Error())
	case errors.Is(err, auth.ErrPhoneTaken):
		writeError(w, r, http.StatusConflict, CodePhoneExists, auth.ErrPhoneTaken.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, CodeUserNotFound, auth.ErrUserNotFound.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.ErrorContext(r.Context(), "store unavailable", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		log.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
