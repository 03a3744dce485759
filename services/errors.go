package services

import "errors"

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in caller.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller may not perform an operation.
	ErrForbidden = errors.New("forbidden")
)
