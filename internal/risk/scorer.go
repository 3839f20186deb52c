package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"aml-monitor/internal/models"
)

// Flag codes attached to scored entities.
const (
	FlagHighValue          = "HIGH_VALUE"
	FlagMediumValue        = "MEDIUM_VALUE"
	FlagRoundAmount        = "ROUND_AMOUNT"
	FlagHighFrequency      = "HIGH_FREQUENCY"
	FlagBlacklistedAddress = "BLACKLISTED_ADDRESS"
	FlagHighRiskActivity   = "HIGH_RISK_ACTIVITY"
)

// Assessment is the outcome of scoring a transaction or wallet.
type Assessment struct {
	RiskScore int              `json:"risk_score"`
	RiskLevel models.RiskLevel `json:"risk_level"`
	Flags     []string         `json:"flags"`
}

// TransactionFeatures is the normalized input for transaction scoring. Both
// scorer tiers are pure functions of this struct, so identical input always
// yields an identical assessment.
type TransactionFeatures struct {
	Hash        string            `json:"hash"`
	FromAddress string            `json:"from_address"`
	ToAddress   string            `json:"to_address"`
	Amount      decimal.Decimal   `json:"amount"`
	Blockchain  models.Blockchain `json:"blockchain"`
	// RecentCount is the wallet's transaction count over the trailing 24h,
	// computed from the store so multiple pipeline instances agree.
	RecentCount int64 `json:"recent_count"`
}

// TransactionSummary is the per-transaction slice of a wallet's history that
// feeds wallet-level scoring.
type TransactionSummary struct {
	Hash      string           `json:"hash"`
	Amount    decimal.Decimal  `json:"amount"`
	RiskScore int              `json:"risk_score"`
	RiskLevel models.RiskLevel `json:"risk_level"`
	Flags     []string         `json:"flags"`
}

// WalletFeatures is the normalized input for wallet scoring.
type WalletFeatures struct {
	Address      string               `json:"address"`
	Blockchain   models.Blockchain    `json:"blockchain"`
	Transactions []TransactionSummary `json:"transactions"`
}

// Scorer produces a risk assessment from normalized features. The remote
// analyzer and the local rule set both satisfy it; the engine picks the tier.
type Scorer interface {
	ScoreTransaction(ctx context.Context, features TransactionFeatures) (*Assessment, error)
	ScoreWallet(ctx context.Context, features WalletFeatures) (*Assessment, error)
}

// clampScore bounds a score to the 0-100 scale.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
