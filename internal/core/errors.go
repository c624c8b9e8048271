package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAccessDenied           = errors.New("access denied")
	ErrAccountLimitReached    = errors.New("account limit reached")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationError describes malformed input for a single field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (value %q)", e.Field, e.Reason, e.Value)
}

// ReferenceError is returned when a section or category label cannot be
// resolved. It matches ErrNotFound with errors.Is.
type ReferenceError struct {
	Kind  string
	Label string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Label)
}

func (e *ReferenceError) Unwrap() error {
	return ErrNotFound
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// AccessDenied wraps ErrAccessDenied with the actor and the entity.
func AccessDenied(user User, kind string, id int64) error {
	return fmt.Errorf("user %s not allowed to access %s %d: %w", user.ID, kind, id, ErrAccessDenied)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
