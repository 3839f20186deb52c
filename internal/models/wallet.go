package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wallet is a monitored blockchain address belonging to a user.
//
// Address is immutable once created. RiskScore and RiskLevel are written only
// by the risk engine; LastPolledAt only by the monitoring pipeline.
type Wallet struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Address      string             `bson:"address" json:"address"`
	Blockchain   Blockchain         `bson:"blockchain" json:"blockchain"`
	UserID       int64              `bson:"user_id" json:"user_id"`
	IsMonitored  bool               `bson:"is_monitored" json:"is_monitored"`
	RiskScore    int                `bson:"risk_score" json:"risk_score"`
	RiskLevel    RiskLevel          `bson:"risk_level" json:"risk_level"`
	LastPolledAt time.Time          `bson:"last_polled_at" json:"last_polled_at"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewWallet creates a wallet in its initial monitored state.
func NewWallet(userID int64, address string, blockchain Blockchain) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		Address:     address,
		Blockchain:  blockchain,
		UserID:      userID,
		IsMonitored: true,
		RiskScore:   0,
		RiskLevel:   RiskLevelLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the wallet fields that the store relies on.
func (w *Wallet) Validate() error {
	if w.UserID <= 0 {
		return fmt.Errorf("invalid user ID")
	}
	if w.Address == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := ParseBlockchain(string(w.Blockchain)); err != nil {
		return err
	}
	if w.RiskScore < 0 || w.RiskScore > 100 {
		return fmt.Errorf("risk score out of range: %d", w.RiskScore)
	}
	return nil
}
