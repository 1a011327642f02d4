package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for any 401 response regardless of its body.
// It always routes to re-authentication and is never retried locally.
var ErrUnauthorized = errors.New("api: unauthorized")

// Failure is any other request-level error. Message is surfaced to the user
// verbatim. StatusCode is zero when the request never got a response.
type Failure struct {
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failureFromStatus(status int, body []byte) *Failure {
	message := string(body)
	if message == "" {
		message = fmt.Sprintf("Request failed: %d", status)
	}
	return &Failure{StatusCode: status, Message: message}
}

// IsUnauthorized reports whether err signals a lost session.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
