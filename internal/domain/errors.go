package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Verification lifecycle failures.
var (
	ErrAlreadyConsumed  = errors.New("verification already consumed")
	ErrExpired          = errors.New("verification expired")
	ErrSecretMismatch   = errors.New("verification secret mismatch")
	ErrSubjectMismatch  = errors.New("verification subject mismatch")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeliveryFailed   = errors.New("delivery failed")
)
