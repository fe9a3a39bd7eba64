package auth

import "errors"

// ErrNoCredential is matched by every error returned from Obtain and Login.
var ErrNoCredential = errors.New("no credential available")

// Error describes a failed load, refresh or authorization.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "auth " + e.Op + ": " + ErrNoCredential.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrNoCredential as a match so callers can test for the whole
// class without caring which step failed.
func (e *Error) Is(target error) bool {
	return target == ErrNoCredential
}
