package domain

import "errors"

var (
	// ErrNotFound is returned when a recognised entity reference has no match.
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownEntityType is returned for entity types outside the four
	// recognised kinds.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrInvalidInput marks caller programming errors such as negative sizes.
	ErrInvalidInput = errors.New("invalid input")
)
