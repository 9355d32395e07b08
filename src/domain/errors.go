package domain

import "errors"

var (
	// ErrSetup means the browser or the page could not be brought up. Fatal.
	ErrSetup = errors.New("setup failure")

	// ErrExtraction means a poll could not read every required field.
	ErrExtraction = errors.New("extraction failure")

	// ErrStorage means a record could not be persisted.
	ErrStorage = errors.New("storage failure")

	ErrInvalidRecord  = errors.New("invalid odds record")
	ErrNotInitialized = errors.New("storage not initialized")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
