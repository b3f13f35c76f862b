package database

import "errors"

var (
	// ErrDuplicateHandle is returned when a handle is already registered
	// as a seed, discovered or accepted record.
	ErrDuplicateHandle = errors.New("handle already registered")

	// ErrDuplicateIdentity is returned when an identity handle already exists.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a status update would move a
	// record backward or skip a state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidLevel is returned when a discovered handle has level < 1.
	ErrInvalidLevel = errors.New("invalid discovery level")
)
