// Package fault classifies pipeline errors so each stage can decide between
// retrying locally, failing a single segment, or ending the session.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the error classification used across the pipeline.
type Kind int

const (
	// KindConfiguration - bad session parameters, rejected synchronously.
	KindConfiguration Kind = iota
	// KindAuthorization - permission or device access denied. Fatal.
	KindAuthorization
	// KindTransient - network blip or timeout. Retried by the owning adapter.
	KindTransient
	// KindPermanent - the external service signalled unrecoverable. Fatal.
	KindPermanent
	// KindSessionActive - a session already owns the capture device.
	KindSessionActive
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthorization:
		return "authorization"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindSessionActive:
		return "session_active"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Error carries a classification alongside the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies an existing error. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from an error chain.
// Unclassified errors are treated as permanent: retrying work we do not
// understand risks duplicate side effects.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindPermanent
}

// IsTransient reports whether the error should be retried by its owner.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// IsFatal reports whether the error must end the session.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	return k == KindAuthorization || k == KindPermanent
}
