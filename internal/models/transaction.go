package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is a single on-chain transfer observed for a monitored wallet.
//
// Hash is globally unique: the store upserts by hash, so re-ingesting the same
// transfer is a no-op. Analyzed flips false to true exactly once, atomically
// with the score fields.
type Transaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Hash        string             `bson:"hash" json:"hash"`
	FromAddress string             `bson:"from_address" json:"from_address"`
	ToAddress   string             `bson:"to_address" json:"to_address"`
	Amount      decimal.Decimal    `bson:"amount" json:"amount"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
	Blockchain  Blockchain         `bson:"blockchain" json:"blockchain"`
	WalletID    primitive.ObjectID `bson:"wallet_id" json:"wallet_id"`
	RiskScore   int                `bson:"risk_score" json:"risk_score"`
	RiskLevel   RiskLevel          `bson:"risk_level" json:"risk_level"`
	Flags       []string           `bson:"flags" json:"flags"`
	Analyzed    bool               `bson:"analyzed" json:"analyzed"`
	AnalyzedAt  *time.Time         `bson:"analyzed_at,omitempty" json:"analyzed_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// NewTransaction creates an unanalyzed transaction for a wallet from a
// normalized chain record.
func NewTransaction(walletID primitive.ObjectID, hash, from, to string, amount decimal.Decimal, ts time.Time, blockchain Blockchain) *Transaction {
	return &Transaction{
		Hash:        hash,
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
		Timestamp:   ts,
		Blockchain:  blockchain,
		WalletID:    walletID,
		RiskScore:   0,
		RiskLevel:   RiskLevelLow,
		Flags:       []string{},
		Analyzed:    false,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the invariants the ingestion step relies on.
func (t *Transaction) Validate() error {
	if t.Hash == "" {
		return fmt.Errorf("transaction hash is required")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount cannot be negative")
	}
	if t.WalletID.IsZero() {
		return fmt.Errorf("wallet ID is required")
	}
	return nil
}
