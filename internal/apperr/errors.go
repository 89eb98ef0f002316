// Package apperr holds the error taxonomy shared by the party lifecycle, the relays
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("party not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrForbidden          = errors.New("token does not match the requested user")

	// ErrRelayPublish and ErrConsume are only ever logged.
	ErrRelayPublish = errors.New("chat relay publish failed")
	ErrConsume      = errors.New("chat relay consume failed")
)

// PersistenceError reports a failed storage operation. Its message is surfaced to
// REST clients as-is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for op. A nil err stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
