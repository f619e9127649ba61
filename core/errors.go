package core

import "errors"

var (
	// ErrAlertNotFound is returned when an alert ID does not exist
	ErrAlertNotFound = errors.New("alert not found")
	// ErrUnknownTool is returned for tool names missing from the manifest
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgument wraps input validation failures
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotConfigured is returned when an optional integration has no credentials
	ErrNotConfigured = errors.New("not configured")
)
