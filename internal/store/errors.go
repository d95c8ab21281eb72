package store

import "errors"

var (
	// ErrNotFound is returned when the requested user or todo does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("store: duplicate username")
	// ErrDuplicateEmail is returned when an email is already in use.
	ErrDuplicateEmail = errors.New("store: duplicate email")
)
