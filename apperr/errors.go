// Package apperr holds the error taxonomy shared by every component.
// Callers should match with errors.Is.
package apperr

import "errors"

var (
	// Missing or malformed caller input. Not retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// Referenced entity absent or already deleted. Not retried.
	ErrNotFound = errors.New("not found")
	// Wrong folder password or admin token. Not retried.
	ErrUnauthorized = errors.New("unauthorized")
	// Corrupt rows, signing or storage failures. Safe to retry.
	ErrInternal = errors.New("internal error")
)

// Kind returns the sentinel err belongs to. Unclassified errors are
// reported as ErrInternal. ErrInternal wins when an error chain carries more
// than one sentinel, so a storage failure is never reported as a client error.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInternal):
		return ErrInternal
	case errors.Is(err, ErrInvalidArgument):
		return ErrInvalidArgument
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized
	default:
		return ErrInternal
	}
}
