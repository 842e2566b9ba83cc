package exam

import "errors"

// Error kinds surfaced to callers. Wrap them with the offending field or id.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidState  = errors.New("invalid state")
	ErrConfiguration = errors.New("configuration error")
)

// ErrActiveAttemptExists is returned by Store.CreateAttempt when the
// (user, exam) pair already has an in-progress attempt.
var ErrActiveAttemptExists = errors.New("active attempt exists")
