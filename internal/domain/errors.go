package domain

import "errors"

var (
	// ErrInvalidInput indicates caller-supplied data violates a precondition.
	ErrInvalidInput = errors.New("domain: invalid input")

	// ErrStorageUnavailable indicates the persisted store could not be read or written.
	ErrStorageUnavailable = errors.New("domain: storage unavailable")

	// ErrParseFailure indicates the persisted value is not valid serialized data.
	ErrParseFailure = errors.New("domain: parse failure")
)
