package core

import "errors"

// Error taxonomy shared by every service. Operations wrap one of these
// with %w; the HTTP layer maps them to status codes.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
)
