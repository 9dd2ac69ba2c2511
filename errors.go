package main

import (
	"errors"
	"fmt"
)

// ErrAlreadyPolling is returned when Poll is called on a channel that is already polling.
var ErrAlreadyPolling = errors.New("comet channel is already polling")

// TransportError is a non-success HTTP status or a network failure during a fetch.
type TransportError struct {
	URL    string
	Status int // 0 for network-level failures
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means a comet response body did not have the expected shape.
type ProtocolError struct {
	Reason string
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "comet protocol: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += fmt.Sprintf(" (body=%.200s)", e.Body)
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PredicateError wraps a failure raised by a caller-supplied matcher.
type PredicateError struct {
	Err error
}

func (e *PredicateError) Error() string { return "match predicate: " + e.Err.Error() }
func (e *PredicateError) Unwrap() error { return e.Err }

// APIError is a failed Plurk API call.
type APIError struct {
	Path   string
	Status int
	Text   string // error_text from the API, or the raw body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plurk api %s: %d %s", e.Path, e.Status, e.Text)
}

// errorKind names an error for metrics and log attributes.
func errorKind(err error) string {
	var te *TransportError
	var pe *ProtocolError
	var pred *PredicateError
	var ae *APIError
	switch {
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &pe):
		return "protocol"
	case errors.As(err, &pred):
		return "predicate"
	case errors.As(err, &ae):
		return "api"
	default:
		return "other"
	}
}
