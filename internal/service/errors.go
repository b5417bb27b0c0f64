package service

import "errors"

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidID is returned for ids that could never have been assigned.
	ErrInvalidID = errors.New("invalid file id")
	// ErrPersistence wraps failures of the metadata store.
	ErrPersistence = errors.New("metadata store failure")
)
