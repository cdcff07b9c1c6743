package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
	// ErrCheckViolation is returned when a write would break a table CHECK (negative cash or shares).
	ErrCheckViolation = errors.New("error check constraint violation")
)
