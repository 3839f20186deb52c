package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"aml-monitor/internal/external"
	"aml-monitor/internal/models"
	"aml-monitor/internal/monitoring"
	"aml-monitor/internal/repository"
)

// Emitter turns alertable assessments into persisted alerts and outbound
// notifications. Persistence is deduplicated by the store, so re-scoring the
// same transaction never produces a second alert.
type Emitter struct {
	alerts   repository.AlertRepository
	notifier external.Notifier
	metrics  *monitoring.Metrics
}

func NewEmitter(alerts repository.AlertRepository, notifier external.Notifier, metrics *monitoring.Metrics) *Emitter {
	if notifier == nil {
		notifier = external.NewNopNotifier()
	}
	return &Emitter{
		alerts:   alerts,
		notifier: notifier,
		metrics:  metrics,
	}
}

// TransactionAlert raises a HIGH_RISK_TRANSACTION alert for the scored
// transaction. Failures are logged and never propagated to the scoring flow.
func (e *Emitter) TransactionAlert(ctx context.Context, wallet *models.Wallet, tx *models.Transaction) {
	alert := &models.Alert{
		UserID:        wallet.UserID,
		WalletID:      wallet.ID,
		TransactionID: &tx.ID,
		Type:          models.AlertTypeHighRiskTransaction,
		Severity:      tx.RiskLevel,
		Title:         fmt.Sprintf("%s risk transaction on %s", tx.RiskLevel, tx.Blockchain),
		Description: fmt.Sprintf(
			"Transaction %s scored %d (%s) on wallet %s. Flags: %s",
			tx.Hash, tx.RiskScore, tx.RiskLevel, wallet.Address, flagList(tx.Flags),
		),
		CreatedAt: time.Now().UTC(),
	}
	e.emit(ctx, alert)
}

// WalletAlert raises a HIGH_RISK_WALLET alert for the wallet's aggregate
// score. At most one unresolved wallet alert exists per wallet.
func (e *Emitter) WalletAlert(ctx context.Context, wallet *models.Wallet) {
	alert := &models.Alert{
		UserID:   wallet.UserID,
		WalletID: wallet.ID,
		Type:     models.AlertTypeHighRiskWallet,
		Severity: wallet.RiskLevel,
		Title:    fmt.Sprintf("%s risk wallet on %s", wallet.RiskLevel, wallet.Blockchain),
		Description: fmt.Sprintf(
			"Wallet %s aggregate risk reached %d (%s)",
			wallet.Address, wallet.RiskScore, wallet.RiskLevel,
		),
		CreatedAt: time.Now().UTC(),
	}
	e.emit(ctx, alert)
}

func (e *Emitter) emit(ctx context.Context, alert *models.Alert) {
	created, err := e.alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"wallet_id": alert.WalletID.Hex(),
			"type":      alert.Type,
		}).Error("Failed to persist alert")
		return
	}
	if !created {
		return
	}

	e.metrics.RecordAlert(string(alert.Severity))
	logrus.WithFields(logrus.Fields{
		"alert_id": alert.ID.Hex(),
		"user_id":  alert.UserID,
		"type":     alert.Type,
		"severity": alert.Severity,
	}).Info("Alert raised")

	// The alert is already durable; a notification failure is not rolled back.
	if err := e.notifier.NotifyAlert(ctx, alert); err != nil {
		e.metrics.RecordNotifyFailure()
		logrus.WithError(err).WithField("alert_id", alert.ID.Hex()).
			Error("Failed to publish alert notification")
	}
}

func flagList(flags []string) string {
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}
