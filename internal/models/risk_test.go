package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected RiskLevel
	}{
		{"zero", 0, RiskLevelLow},
		{"just below medium", 29, RiskLevelLow},
		{"medium lower bound", 30, RiskLevelMedium},
		{"just below high", 49, RiskLevelMedium},
		{"high lower bound", 50, RiskLevelHigh},
		{"just below critical", 69, RiskLevelHigh},
		{"critical lower bound", 70, RiskLevelCritical},
		{"maximum", 100, RiskLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevelForScore(tt.score))
		})
	}
}

func TestRiskLevel_IsAlertable(t *testing.T) {
	assert.False(t, RiskLevelLow.IsAlertable())
	assert.False(t, RiskLevelMedium.IsAlertable())
	assert.True(t, RiskLevelHigh.IsAlertable())
	assert.True(t, RiskLevelCritical.IsAlertable())
}

func TestParseBlockchain(t *testing.T) {
	b, err := ParseBlockchain("ethereum")
	assert.NoError(t, err)
	assert.Equal(t, BlockchainEthereum, b)

	b, err = ParseBlockchain("BITCOIN")
	assert.NoError(t, err)
	assert.Equal(t, BlockchainBitcoin, b)

	_, err = ParseBlockchain("dogecoin")
	assert.Error(t, err)
}
