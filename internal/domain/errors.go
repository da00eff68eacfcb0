package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOpenSessionExists is returned when opening a work session for a user
	// that already has one without a check-out time.
	ErrOpenSessionExists = errors.New("open work session already exists")
	ErrDuplicateWorkLog  = errors.New("work log already exists for that date")
)
