package domain

import "errors"

var (
	// ErrDuplicateKey is returned when a correlation record already exists for a phone number or thread.
	ErrDuplicateKey = errors.New("correlation record already exists")
	// ErrNotFound is returned when a lookup that must succeed finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired is returned when a user has not completed the OAuth flow.
	ErrAuthRequired = errors.New("user authorization required")
	// ErrInvalidPhone is returned for numbers that are not 10/11-digit NANP numbers.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidInput is returned for requests missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState is returned for dialog state tokens that fail verification.
	ErrInvalidState = errors.New("invalid dialog state")
)
