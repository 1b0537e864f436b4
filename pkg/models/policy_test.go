package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestAcceptancePolicyAccept(t *testing.T) {
	tests := []struct {
		name      string
		policy    AcceptancePolicy
		candidate float64
		baseline  *float64
		tolerance float64
		want      bool
	}{
		{"always accepts worse candidate", AcceptAlways, 0.80, ptr(0.95), 0, true},
		{"no baseline always accepted", AcceptIfBetter, 0.10, nil, 0, true},
		{"if better rejects worse", AcceptIfBetter, 0.80, ptr(0.95), 0, false},
		{"if better rejects equal", AcceptIfBetter, 0.95, ptr(0.95), 0, false},
		{"if better accepts better", AcceptIfBetter, 0.96, ptr(0.95), 0, true},
		{"tolerance accepts small drop", AcceptWithinTolerance, 0.93, ptr(0.95), 0.05, true},
		{"tolerance rejects large drop", AcceptWithinTolerance, 0.80, ptr(0.95), 0.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Accept(tt.candidate, tt.baseline, tt.tolerance))
		})
	}
}

func TestParseAcceptancePolicy(t *testing.T) {
	p, err := ParseAcceptancePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AcceptAlways, p)

	p, err = ParseAcceptancePolicy("within_tolerance")
	require.NoError(t, err)
	assert.Equal(t, AcceptWithinTolerance, p)

	_, err = ParseAcceptancePolicy("sometimes")
	assert.Error(t, err)
}

func TestParseSplitSource(t *testing.T) {
	s, err := ParseSplitSource("")
	require.NoError(t, err)
	assert.Equal(t, SplitRaw, s)

	s, err = ParseSplitSource("cleaned")
	require.NoError(t, err)
	assert.Equal(t, SplitCleaned, s)

	_, err = ParseSplitSource("both")
	assert.Error(t, err)
}
