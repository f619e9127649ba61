package storage

import (
	"errors"

	"socdash/core"
)

// Storage error constants
var (
	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = core.ErrAlertNotFound

	// ErrInvalidIdentifier is returned for database or table names that are unsafe to embed in SQL
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrEmptySessionID is returned by history stores for blank session IDs
	ErrEmptySessionID = errors.New("session ID cannot be empty")
)
