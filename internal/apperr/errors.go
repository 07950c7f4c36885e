// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	// ErrNotFound signals that a knowl does not exist in the store.
	// Most read paths treat this permissively (see service.Get).
	ErrNotFound = errors.New("not found")

	// ErrInvalidID signals an identifier that fails the allowed pattern.
	ErrInvalidID = errors.New("invalid knowl id")
)
