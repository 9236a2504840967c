package app

import "errors"

var (
	// ErrValidation wraps draft validation failures; no request was sent.
	ErrValidation = errors.New("validation failed")
	// ErrNotLoggedIn is returned by mutations attempted without a session.
	ErrNotLoggedIn = errors.New("you must be logged in")
	// ErrForbidden means the session user may not modify the entity.
	ErrForbidden = errors.New("not allowed")
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled")
	// ErrSuperseded is returned when a result arrived after a newer selection
	// and was dropped without touching state.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrNotFound means the id is not in the local list.
	ErrNotFound = errors.New("not in list")
	// ErrNoSelection is returned when an operation needs a parent that is not selected.
	ErrNoSelection = errors.New("nothing selected")
	// ErrReadOnly is returned by collections the client cannot mutate.
	ErrReadOnly = errors.New("collection is read-only")
)
