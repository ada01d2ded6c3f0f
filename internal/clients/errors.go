package clients

import "errors"

var (
	// ErrNotFound is returned when no record exists for a base URL
	ErrNotFound = errors.New("client not found")

	// ErrAlreadyExists is returned when a create collides with an existing record
	ErrAlreadyExists = errors.New("client already exists")

	// ErrInvalidSecret is returned when the presented security code does not match
	ErrInvalidSecret = errors.New("invalid security code")
)
