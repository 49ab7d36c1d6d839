package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert hits a uniqueness constraint.
	// Callers treat it as "already exists" and re-read.
	ErrDuplicate = errors.New("entity already exists")
)
