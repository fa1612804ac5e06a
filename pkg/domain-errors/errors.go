// Package domainerrors provides coded errors for the custodia core. Every
// rejected command carries exactly one code so callers can branch on the
// failure kind without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeAlreadyExists signals a create for a principal that already has
	// an identity.
	CodeAlreadyExists Code = "already_exists"
	// CodeNotFound covers unknown subjects, grants, validators, and action
	// types.
	CodeNotFound Code = "not_found"
	// CodeDuplicate covers duplicate links, credentials, action types, and
	// validator node IDs.
	CodeDuplicate Code = "duplicate"
	// CodeReplayRejected signals a delegated command whose nonce is not
	// strictly greater than the identity's recorded nonce.
	CodeReplayRejected Code = "replay_rejected"
	// CodeUnauthorized signals a caller that is neither the subject, the
	// estate delegate, an authorized relayer, nor a privileged registrar.
	CodeUnauthorized Code = "unauthorized"
	// CodeInsufficientStake signals validator registration below the
	// configured minimum stake.
	CodeInsufficientStake Code = "insufficient_stake"
	// CodeExpired signals a grant or credential past its validity window.
	CodeExpired Code = "expired"
	// CodeInvalidState signals an operation against an identity whose
	// status does not permit it (e.g. linking to a revoked identity).
	CodeInvalidState Code = "invalid_state"

	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is the concrete coded error. Services construct these at the point
// the rejection becomes a domain fact; infra layers return sentinel errors
// instead and let services translate.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New constructs a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error while preserving
// the chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a convenience alias for HasCode used at transport boundaries.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code from err, defaulting to CodeInternal
// for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
