package sheets

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// FailureKind classifies a sync failure at the site where it occurs, so
// downstream consumers (the orchestrator, the background scheduler) can
// decide retry behavior without inspecting message text.
type FailureKind int

const (
	// KindTransport covers network and remote-service errors.
	KindTransport FailureKind = iota
	// KindAuth covers authentication and authorization rejections.
	KindAuth
	// KindConfig covers missing or invalid sync configuration.
	KindConfig
	// KindInternal covers everything else.
	KindInternal
)

// String returns a human-readable representation of the kind.
func (k FailureKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Failure is the single error type crossing the gateway/orchestrator
// boundary. No operation lets a raw transport error escape to callers.
type Failure struct {
	Kind FailureKind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure with an explicit kind.
func NewFailure(kind FailureKind, msg string, err error) *Failure {
	return &Failure{Kind: kind, Msg: msg, Err: err}
}

// wrap normalizes an arbitrary error from the remote service into a
// Failure, classifying auth rejections by HTTP status.
func wrap(msg string, err error) *Failure {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return &Failure{Kind: KindAuth, Msg: msg, Err: err}
	}
	return &Failure{Kind: KindTransport, Msg: msg, Err: err}
}

// KindOf extracts the failure kind from an error chain.
// Errors that are not Failures report KindInternal.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}
