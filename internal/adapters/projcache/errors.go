package projcache

import "errors"

// Sentinel kinds for projection cache errors.
var (
	ErrClosed        = errors.New("projection cache is closed")
	ErrInvalidUserID = errors.New("invalid user id")
)
