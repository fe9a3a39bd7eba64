package gdocs

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// APIError is a failed Drive or Docs call. It keeps the original error
// message and, when the API returned one, the HTTP status code.
type APIError struct {
	Op   string
	Code int
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gdocs %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func newAPIError(op string, err error) *APIError {
	e := &APIError{Op: op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e.Code = gerr.Code
	}
	return e
}

// IsNotFound reports whether err is a Drive "file not found" error.
func IsNotFound(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == http.StatusNotFound
}

// IsRateLimited reports whether err is a quota or rate-limit rejection.
func IsRateLimited(err error) bool {
	var e *APIError
	if !errors.As(err, &e) {
		return false
	}
	if e.Code == http.StatusTooManyRequests {
		return true
	}
	var gerr *googleapi.Error
	if e.Code == http.StatusForbidden && errors.As(e.Err, &gerr) {
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded":
				return true
			}
		}
	}
	return false
}

// FormatError describes an export that could not be produced in the
// requested MIME type. Read recovers from it with fallback content.
type FormatError struct {
	Kind     Kind
	MIMEType string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("exporting %s as %s: %v", e.Kind, e.MIMEType, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
