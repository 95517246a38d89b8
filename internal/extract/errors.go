package extract

import (
	"errors"
	"fmt"

	"github.com/jobfoundry/apply-cli/internal/resilience"
)

// UnavailableError signals that the posting no longer exists or is closed.
// It is authoritative: no fallback, no retry.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	return "job posting unavailable: " + e.Reason
}

// RestrictedError signals that the posting carries a hard visa or work
// authorization restriction. Authoritative, like UnavailableError.
type RestrictedError struct {
	Reason string
}

func (e *RestrictedError) Error() string {
	return "job posting restricted: " + e.Reason
}

// Kind classifies a technical extraction failure. Recoverability is an
// explicit property of the kind, not inferred from error text.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindIncomplete Kind = "incomplete"
	KindEmpty      Kind = "empty"
	KindContent    Kind = "content"
	KindInternal   Kind = "internal"
)

// Recoverable reports whether a failure of this kind may succeed on the
// fallback path.
func (k Kind) Recoverable() bool {
	switch k {
	case KindTimeout, KindConnection, KindIncomplete, KindEmpty, KindContent:
		return true
	}
	return false
}

// TechnicalError is a classified extraction failure.
type TechnicalError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction %s error: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("extraction %s error: %s", e.Kind, e.Detail)
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

// Technical wraps err as a TechnicalError of the given kind.
func Technical(kind Kind, detail string, err error) *TechnicalError {
	return &TechnicalError{Kind: kind, Detail: detail, Err: err}
}

// IsBusinessOutcome reports whether err is an authoritative stop signal
// (unavailable or restricted) rather than a technical failure.
func IsBusinessOutcome(err error) bool {
	var ue *UnavailableError
	var re *RestrictedError
	return errors.As(err, &ue) || errors.As(err, &re)
}

// Recoverable reports whether a failed primary attempt should trigger the
// single fallback attempt. Business outcomes are never recoverable.
// Classified technical errors answer through their kind; raw transport
// errors leaking from HTTP clients fall back to the transient check.
func Recoverable(err error) bool {
	if err == nil || IsBusinessOutcome(err) {
		return false
	}
	var te *TechnicalError
	if errors.As(err, &te) {
		return te.Kind.Recoverable()
	}
	return resilience.IsTransient(err)
}
