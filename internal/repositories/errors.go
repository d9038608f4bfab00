package repositories

import (
	"errors"
	"fmt"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrProfileExists   = errors.New("profile already exists")
)

// ValidationError reports input rejected before anything was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionError reports a mutation attempted by someone other than the owner.
type PermissionError struct {
	Action   string
	Resource string
	ID       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not allowed to %s %s %s", e.Action, e.Resource, e.ID)
}

// TransportError wraps a failure of the underlying store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// storeErr wraps err as a TransportError unless it already carries a domain
// meaning, so errors returned from inside a transaction pass through intact.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		pe *PermissionError
		te *TransportError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &pe), errors.As(err, &te):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrProfileExists), errors.Is(err, ErrUnauthenticated):
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// isDuplicate reports a unique key violation from the store.
func isDuplicate(err error) bool {
	return errors.Is(err, datastore.ErrDuplicate)
}
