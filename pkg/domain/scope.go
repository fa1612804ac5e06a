package domain

import dErrors "custodia/pkg/domain-errors"

// AccessScope labels the category of subject data an access grant covers.
// Scope binding allows selective revocation without affecting other grants.
type AccessScope string

// Supported access scopes. One per domain adapter plus an emergency scope
// for break-glass access.
const (
	ScopeClinical    AccessScope = "clinical"
	ScopeBiofeedback AccessScope = "biofeedback"
	ScopeFrequency   AccessScope = "frequency_therapy"
	ScopeAIInference AccessScope = "ai_inference"
	ScopeGeographic  AccessScope = "geographic"
	ScopeEmergency   AccessScope = "emergency"
)

// validAccessScopes is the single source of truth for valid scopes.
var validAccessScopes = map[AccessScope]bool{
	ScopeClinical:    true,
	ScopeBiofeedback: true,
	ScopeFrequency:   true,
	ScopeAIInference: true,
	ScopeGeographic:  true,
	ScopeEmergency:   true,
}

// ParseAccessScope constructs an AccessScope from external input.
//
// Usage: call from handlers/adapters when parsing requests.
func ParseAccessScope(s string) (AccessScope, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "scope cannot be empty")
	}
	sc := AccessScope(s)
	if !sc.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid scope")
	}
	return sc, nil
}

// IsValid checks if the scope is one of the supported enum values.
func (s AccessScope) IsValid() bool {
	return validAccessScopes[s]
}

// String returns the string representation of the scope.
func (s AccessScope) String() string {
	return string(s)
}
