package revision

import (
	"errors"
	"fmt"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
)

var (
	// ErrValidation marks bad caller input. Nothing was changed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the user has no such item.
	ErrNotFound = errors.New("revision item not found")
	// ErrPersistence means the store could not be reached or refused a write.
	ErrPersistence = errors.New("revision store unavailable")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storeErr classifies a store failure for callers.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, revisionitems.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
