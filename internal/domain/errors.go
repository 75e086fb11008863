package domain

import "errors"

var (
	// ErrNotFound reports a missing user, group, membership or expense.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a unique key collision (username, chat, group name, membership).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput reports malformed input that reached the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden reports an action the user's role does not allow.
	ErrForbidden = errors.New("forbidden")
)
