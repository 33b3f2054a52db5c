package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for outcomes the HTTP layer maps to exact status codes.
var (
	ErrNotFound           = errors.New("link not found")
	ErrAliasTaken         = errors.New("custom alias is already taken")
	ErrSlugTaken          = errors.New("short id already exists")
	ErrCollisionExhausted = errors.New("could not generate a unique short id")
	ErrExpired            = errors.New("link has expired")
	ErrUnsafeRedirect     = errors.New("redirect target scheme is not allowed")
	ErrPasswordRequired   = errors.New("password required")
	ErrWrongPassword      = errors.New("incorrect password")
	ErrSigningDisabled    = errors.New("link signing is not configured")
)

// ValidationError is a malformed or missing input, always a 400.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func Invalid(format string, args ...interface{}) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ForbiddenError is a failed signature gate, a 403 with a reason the caller
// can act on (missing vs invalid vs expired signature).
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string { return e.Reason }

// PolicyError is a creation-time domain or reputation block, a 422.
type PolicyError struct {
	Reason string
}

func (e PolicyError) Error() string { return e.Reason }
