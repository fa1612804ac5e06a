package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domain-errors"
)

func TestParseAccessScope(t *testing.T) {
	for _, valid := range []string{
		"clinical", "biofeedback", "frequency_therapy",
		"ai_inference", "geographic", "emergency",
	} {
		sc, err := ParseAccessScope(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, valid, sc.String())
		assert.True(t, sc.IsValid())
	}

	for _, invalid := range []string{"", "everything", "CLINICAL", "clinical "} {
		_, err := ParseAccessScope(invalid)
		require.Error(t, err, invalid)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	}
}

func TestParseSystemType(t *testing.T) {
	for _, valid := range []string{
		"clinical", "biofeedback", "frequency_therapy",
		"ai_inference", "geographic", "core",
	} {
		st, err := ParseSystemType(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, valid, st.String())
	}

	for _, invalid := range []string{"", "billing", "Core"} {
		_, err := ParseSystemType(invalid)
		require.Error(t, err, invalid)
	}
}
