// Package provider defines the shared error taxonomy for external stage
// providers. Clients classify failures as transient or permanent so the
// orchestrator can decide between retrying a stage and failing it outright.
package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	// Transient marks failures worth retrying: network errors, timeouts,
	// rate limits, 5xx responses.
	Transient Kind = "transient"
	// Permanent marks failures that retrying cannot fix: rejected input,
	// unsupported languages, 4xx responses.
	Permanent Kind = "permanent"
)

// Error is a classified provider failure.
type Error struct {
	// Kind is the retry classification.
	Kind Kind
	// Provider names the provider that failed (e.g. "transcription").
	Provider string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a retryable provider failure.
func NewTransient(providerName string, err error) *Error {
	return &Error{Kind: Transient, Provider: providerName, Err: err}
}

// NewPermanent wraps err as a non-retryable provider failure.
func NewPermanent(providerName string, err error) *Error {
	return &Error{Kind: Permanent, Provider: providerName, Err: err}
}

// IsTransient reports whether err is a provider error classified transient.
// Errors that are not provider errors at all report false.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Transient
}

// IsPermanent reports whether err is a provider error classified permanent.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Permanent
}
