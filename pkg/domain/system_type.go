package domain

import dErrors "custodia/pkg/domain-errors"

// SystemType tags which collaborating system a link, credential, or audit
// entry belongs to. Each identity may hold at most one link per system type.
type SystemType string

const (
	SystemClinical    SystemType = "clinical"
	SystemBiofeedback SystemType = "biofeedback"
	SystemFrequency   SystemType = "frequency_therapy"
	SystemAIInference SystemType = "ai_inference"
	SystemGeographic  SystemType = "geographic"
	// SystemCore tags audit entries the core emits about itself (grants,
	// breaches, estate transitions, validator lifecycle).
	SystemCore SystemType = "core"
)

var validSystemTypes = map[SystemType]bool{
	SystemClinical:    true,
	SystemBiofeedback: true,
	SystemFrequency:   true,
	SystemAIInference: true,
	SystemGeographic:  true,
	SystemCore:        true,
}

// ParseSystemType constructs a SystemType from external input.
func ParseSystemType(s string) (SystemType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "system type cannot be empty")
	}
	st := SystemType(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid system type")
	}
	return st, nil
}

func (s SystemType) IsValid() bool {
	return validSystemTypes[s]
}

func (s SystemType) String() string {
	return string(s)
}
