package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertType classifies what triggered an alert.
type AlertType string

const (
	AlertTypeHighRiskTransaction AlertType = "HIGH_RISK_TRANSACTION"
	AlertTypeHighRiskWallet      AlertType = "HIGH_RISK_WALLET"
)

// Alert is raised when a scored entity crosses the HIGH/CRITICAL bands.
// At most one alert exists per (transaction, type) pair.
type Alert struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID        int64               `bson:"user_id" json:"user_id"`
	WalletID      primitive.ObjectID  `bson:"wallet_id" json:"wallet_id"`
	TransactionID *primitive.ObjectID `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	Type          AlertType           `bson:"type" json:"type"`
	Severity      RiskLevel           `bson:"severity" json:"severity"`
	Title         string              `bson:"title" json:"title"`
	Description   string              `bson:"description" json:"description"`
	IsRead        bool                `bson:"is_read" json:"is_read"`
	IsResolved    bool                `bson:"is_resolved" json:"is_resolved"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
}
