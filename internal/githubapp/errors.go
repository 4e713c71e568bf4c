package githubapp

import (
	"errors"
	"fmt"
)

// Failure classes for a token exchange. Callers branch on these with
// errors.Is; the wrapped error keeps the upstream detail.
var (
	ErrValidation           = errors.New("invalid parameters")
	ErrAuthentication       = errors.New("github app authentication rejected")
	ErrInstallationNotFound = errors.New("installation not found")
	ErrTransport            = errors.New("github api unreachable")
	ErrVerificationFailed   = errors.New("token verification failed")
)

// Error carries the failing operation and its class.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's class, so errors.Is(err, ErrInstallationNotFound)
// works without unwrapping the upstream chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func opError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
