package chat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBody      = errors.New("chat: message body is required")
	ErrListingMissing = errors.New("chat: listing id is required")
	ErrSelfChat       = errors.New("chat: cannot start a conversation with yourself")
)

// ValidationError is a client-side rejection raised before any request is made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// ValidateBody rejects empty and whitespace-only bodies. Accepted bodies are
// sent exactly as typed.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "body", Err: ErrEmptyBody}
	}
	return nil
}

// ValidateListing rejects an empty listing id.
func ValidateListing(listingID ID) error {
	if listingID.IsZero() {
		return &ValidationError{Field: "post_id", Err: ErrListingMissing}
	}
	return nil
}

// Identity is the local belief about which participant is the viewer.
type Identity struct {
	ID    ID
	Known bool
}

// UnknownIdentity renders every message as received.
var UnknownIdentity = Identity{}

// KnownIdentity wraps a server-confirmed participant id.
func KnownIdentity(id ID) Identity {
	if id.IsZero() {
		return UnknownIdentity
	}
	return Identity{ID: id, Known: true}
}

// IsMine reports whether the message was authored by the viewer.
func (i Identity) IsMine(m Message) bool {
	return i.Known && m.SenderID == i.ID
}
