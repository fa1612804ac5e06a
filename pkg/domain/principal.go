package domain

import (
	"strings"
	"unicode"

	dErrors "custodia/pkg/domain-errors"
)

// Principal is the external identifier of a subject, caller, relayer, or
// validator. It is opaque to the core; the core only requires uniqueness and
// a bounded, printable shape.
//
// Usage: construct via ParsePrincipal at trust boundaries to enforce the
// shape; direct casting bypasses validation.
type Principal string

const maxPrincipalLen = 128

// ParsePrincipal constructs a Principal from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, oversized, or
// contains control/whitespace characters; no other errors are expected.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	if len(s) > maxPrincipalLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal exceeds maximum length")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal has surrounding whitespace")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains whitespace or control characters")
		}
	}
	return Principal(s), nil
}

// String returns the string representation of the principal.
func (p Principal) String() string {
	return string(p)
}

// IsNil returns true if the principal is empty.
func (p Principal) IsNil() bool {
	return p == ""
}
