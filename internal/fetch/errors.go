package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind int

const (
	// Transient failures happen before a resource has ever loaded. They are
	// retried automatically and only surface as status notices.
	Transient Kind = iota + 1
	// Interactive failures happen after the first success or on manual
	// actions. They are reported once and never retried.
	Interactive
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Interactive:
		return "interactive"
	}
	return "unknown"
}

// Error wraps a failed fetch with its classification.
type Error struct {
	Kind     Kind
	Resource string
	Attempt  int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failure: %v", e.Resource, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewInteractive marks err as a one-shot failure of resource.
func NewInteractive(resource string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Interactive, Resource: resource, Attempt: 1, Err: err}
}

// IsInteractive reports whether err is an interactive fetch failure.
func IsInteractive(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == Interactive
}

// IsTransient reports whether err is a transient fetch failure.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == Transient
}
