// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request carried invalid input.
// Wrap it with details: fmt.Errorf("%w: event type is required", domain.ErrValidation).
var ErrValidation = errors.New("validation error")
