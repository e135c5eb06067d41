package analyses

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStaleTransition = errors.New("stale status transition")
)
