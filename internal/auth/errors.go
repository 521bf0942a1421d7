package auth

import (
	"errors"
	"fmt"
)

// FailureKind classifies why authentication failed
type FailureKind string

const (
	// KindMissingToken means no usable bearer token was sent
	KindMissingToken FailureKind = "missing_token"
	// KindInvalidToken means the identity provider rejected the token
	KindInvalidToken FailureKind = "invalid_token"
	// KindStore means the admin or player lookup failed
	KindStore FailureKind = "store"
)

var (
	// ErrMissingToken is returned when the Authorization header is absent or empty
	ErrMissingToken = errors.New("no token provided")
	// ErrMalformedHeader is returned when the header does not use the "Bearer " scheme
	ErrMalformedHeader = errors.New("authorization header must use the Bearer scheme")
)

// Error is an authentication failure with its kind
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail is the client-facing description. Store failures do not expose
// the underlying cause.
func (e *Error) Detail() string {
	switch e.Kind {
	case KindMissingToken:
		if e.Err != nil {
			return e.Err.Error()
		}
		return ErrMissingToken.Error()
	case KindInvalidToken:
		return "invalid or expired token"
	default:
		return "profile lookup failed"
	}
}

// KindOf returns the failure kind of err, or KindStore for unclassified errors
func KindOf(err error) FailureKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindStore
}

// IsClientError reports whether err was caused by the request rather than
// by the infrastructure behind it
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindMissingToken, KindInvalidToken:
		return true
	}
	return false
}

func fail(kind FailureKind, err error) error {
	return &Error{Kind: kind, Err: err}
}
