// Package common defines shared constants and sentinel errors used across
// pinvault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorLocked = errors.New("vault is locked")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
)
