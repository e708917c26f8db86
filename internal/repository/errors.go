package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned by conditional updates when the request
	// is no longer in the expected status. The caller must re-fetch.
	ErrStaleState = errors.New("request not in expected status")
)
