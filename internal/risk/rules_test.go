package risk

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"aml-monitor/internal/models"
)

func TestRuleScorer_ScoreTransaction(t *testing.T) {
	scorer := NewRuleScorer(nil, 10)

	tests := []struct {
		name          string
		features      TransactionFeatures
		expectedScore int
		expectedLevel models.RiskLevel
		expectedFlags []string
	}{
		{
			name: "small transfer scores zero",
			features: TransactionFeatures{
				Amount: decimal.NewFromInt(5),
			},
			expectedScore: 0,
			expectedLevel: models.RiskLevelLow,
			expectedFlags: nil,
		},
		{
			name: "medium value",
			features: TransactionFeatures{
				Amount: decimal.NewFromFloat(10000.50),
			},
			expectedScore: 20,
			expectedLevel: models.RiskLevelLow,
			expectedFlags: []string{FlagMediumValue},
		},
		{
			name: "high value round amount",
			features: TransactionFeatures{
				Amount: decimal.NewFromInt(60000),
			},
			expectedScore: 55,
			expectedLevel: models.RiskLevelHigh,
			expectedFlags: []string{FlagHighValue, FlagRoundAmount},
		},
		{
			name: "high value non-round amount",
			features: TransactionFeatures{
				Amount: decimal.NewFromFloat(60000.7),
			},
			expectedScore: 40,
			expectedLevel: models.RiskLevelMedium,
			expectedFlags: []string{FlagHighValue},
		},
		{
			name: "exact threshold is not high value",
			features: TransactionFeatures{
				Amount: decimal.NewFromInt(50000),
			},
			expectedScore: 35,
			expectedLevel: models.RiskLevelMedium,
			expectedFlags: []string{FlagMediumValue, FlagRoundAmount},
		},
		{
			name: "high frequency",
			features: TransactionFeatures{
				Amount:      decimal.NewFromInt(100),
				RecentCount: 11,
			},
			expectedScore: 25,
			expectedLevel: models.RiskLevelLow,
			expectedFlags: []string{FlagHighFrequency},
		},
		{
			name: "frequency at threshold does not trigger",
			features: TransactionFeatures{
				Amount:      decimal.NewFromInt(100),
				RecentCount: 10,
			},
			expectedScore: 0,
			expectedLevel: models.RiskLevelLow,
			expectedFlags: nil,
		},
		{
			name: "denylisted recipient",
			features: TransactionFeatures{
				Amount:    decimal.NewFromInt(100),
				ToAddress: "0x7F367cc41522cE07553e823bf3be79A889DEbe1B",
			},
			expectedScore: 50,
			expectedLevel: models.RiskLevelHigh,
			expectedFlags: []string{FlagBlacklistedAddress},
		},
		{
			name: "everything at once is clamped",
			features: TransactionFeatures{
				Amount:      decimal.NewFromInt(100000),
				FromAddress: "1dice8EMZmqKvrGE4Qc9bUFf9PX3xaYDp",
				RecentCount: 50,
			},
			expectedScore: 100,
			expectedLevel: models.RiskLevelCritical,
			expectedFlags: []string{FlagHighValue, FlagRoundAmount, FlagHighFrequency, FlagBlacklistedAddress},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment, err := scorer.ScoreTransaction(context.Background(), tt.features)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedScore, assessment.RiskScore)
			assert.Equal(t, tt.expectedLevel, assessment.RiskLevel)
			assert.ElementsMatch(t, tt.expectedFlags, assessment.Flags)
		})
	}
}

func TestRuleScorer_Deterministic(t *testing.T) {
	scorer := NewRuleScorer(nil, 10)
	features := TransactionFeatures{
		Amount:      decimal.NewFromInt(60000),
		RecentCount: 12,
	}

	first, err := scorer.ScoreTransaction(context.Background(), features)
	assert.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := scorer.ScoreTransaction(context.Background(), features)
		assert.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRuleScorer_ScoreWallet(t *testing.T) {
	scorer := NewRuleScorer(nil, 10)

	t.Run("empty history", func(t *testing.T) {
		assessment, err := scorer.ScoreWallet(context.Background(), WalletFeatures{})
		assert.NoError(t, err)
		assert.Equal(t, 0, assessment.RiskScore)
		assert.Equal(t, models.RiskLevelLow, assessment.RiskLevel)
	})

	t.Run("riskiest transaction sets the base", func(t *testing.T) {
		assessment, err := scorer.ScoreWallet(context.Background(), WalletFeatures{
			Transactions: []TransactionSummary{
				{RiskScore: 10, RiskLevel: models.RiskLevelLow},
				{RiskScore: 55, RiskLevel: models.RiskLevelHigh, Flags: []string{FlagHighValue}},
			},
		})
		assert.NoError(t, err)
		assert.Equal(t, 55, assessment.RiskScore)
		assert.Equal(t, models.RiskLevelHigh, assessment.RiskLevel)
		assert.Contains(t, assessment.Flags, FlagHighValue)
	})

	t.Run("repeated high risk activity compounds", func(t *testing.T) {
		history := make([]TransactionSummary, 5)
		for i := range history {
			history[i] = TransactionSummary{RiskScore: 55, RiskLevel: models.RiskLevelHigh}
		}

		assessment, err := scorer.ScoreWallet(context.Background(), WalletFeatures{Transactions: history})
		assert.NoError(t, err)
		// Base 55 plus 5 per extra alertable transaction.
		assert.Equal(t, 75, assessment.RiskScore)
		assert.Equal(t, models.RiskLevelCritical, assessment.RiskLevel)
		assert.Contains(t, assessment.Flags, FlagHighRiskActivity)
	})
}
