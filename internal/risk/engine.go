package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"aml-monitor/internal/models"
	"aml-monitor/internal/monitoring"
	"aml-monitor/internal/repository"
)

const (
	// recentWindow is the trailing window for the frequency feature.
	recentWindow = 24 * time.Hour

	// walletHistoryLimit caps how many persisted transactions feed a
	// wallet-level assessment.
	walletHistoryLimit = 50
)

// AlertSink receives assessments that crossed the alertable bands. The engine
// never fails a scoring run because a sink failed.
type AlertSink interface {
	TransactionAlert(ctx context.Context, wallet *models.Wallet, tx *models.Transaction)
	WalletAlert(ctx context.Context, wallet *models.Wallet)
}

// Engine runs the two-tier scoring flow: the remote analyzer first, the local
// rule set whenever the analyzer is disabled or unreachable. A transaction is
// always left with a persisted assessment from one of the tiers.
type Engine struct {
	remote     Scorer
	rules      *RuleScorer
	txRepo     repository.TransactionRepository
	walletRepo repository.WalletRepository
	sink       AlertSink
	metrics    *monitoring.Metrics
}

// NewEngine wires the scoring engine. remote may be nil, which pins every
// assessment to the rule tier. sink may be nil to disable alerting.
func NewEngine(
	remote Scorer,
	rules *RuleScorer,
	txRepo repository.TransactionRepository,
	walletRepo repository.WalletRepository,
	sink AlertSink,
	metrics *monitoring.Metrics,
) *Engine {
	return &Engine{
		remote:     remote,
		rules:      rules,
		txRepo:     txRepo,
		walletRepo: walletRepo,
		sink:       sink,
		metrics:    metrics,
	}
}

// ScoreTransaction assesses one transaction and persists the result together
// with analyzed=true in a single store write. wallet may be nil; it is looked
// up when an alert has to be raised.
func (e *Engine) ScoreTransaction(ctx context.Context, wallet *models.Wallet, tx *models.Transaction) error {
	recentCount, err := e.txRepo.CountForWalletSince(ctx, tx.WalletID, time.Now().UTC().Add(-recentWindow))
	if err != nil {
		logrus.WithError(err).WithField("wallet_id", tx.WalletID.Hex()).
			Warn("Failed to count recent transactions, frequency rule disabled for this run")
		recentCount = 0
	}

	features := TransactionFeatures{
		Hash:        tx.Hash,
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		Amount:      tx.Amount,
		Blockchain:  tx.Blockchain,
		RecentCount: recentCount,
	}

	started := time.Now()
	assessment, tier := e.assess(func(s Scorer) (*Assessment, error) {
		return s.ScoreTransaction(ctx, features)
	})
	e.metrics.RecordScoring(tier, time.Since(started))

	if err := e.txRepo.UpdateScore(ctx, tx.ID, assessment.RiskScore, assessment.RiskLevel, assessment.Flags); err != nil {
		return fmt.Errorf("failed to persist transaction assessment: %w", err)
	}

	tx.RiskScore = assessment.RiskScore
	tx.RiskLevel = assessment.RiskLevel
	tx.Flags = assessment.Flags
	tx.Analyzed = true

	logrus.WithFields(logrus.Fields{
		"hash":       tx.Hash,
		"risk_score": assessment.RiskScore,
		"risk_level": assessment.RiskLevel,
		"tier":       tier,
	}).Debug("Transaction scored")

	if assessment.RiskLevel.IsAlertable() && e.sink != nil {
		if wallet == nil {
			wallet, err = e.walletRepo.GetByID(ctx, tx.WalletID)
			if err != nil || wallet == nil {
				logrus.WithError(err).WithField("wallet_id", tx.WalletID.Hex()).
					Error("Failed to load wallet for transaction alert")
				return nil
			}
		}
		e.sink.TransactionAlert(ctx, wallet, tx)
	}
	return nil
}

// ScoreWallet re-assesses a wallet from its recent persisted transactions and
// updates the wallet's aggregate risk.
func (e *Engine) ScoreWallet(ctx context.Context, wallet *models.Wallet) error {
	history, err := e.txRepo.ListByWallet(ctx, wallet.ID, walletHistoryLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to load wallet history: %w", err)
	}

	features := WalletFeatures{
		Address:      wallet.Address,
		Blockchain:   wallet.Blockchain,
		Transactions: make([]TransactionSummary, 0, len(history)),
	}
	for _, tx := range history {
		features.Transactions = append(features.Transactions, TransactionSummary{
			Hash:      tx.Hash,
			Amount:    tx.Amount,
			RiskScore: tx.RiskScore,
			RiskLevel: tx.RiskLevel,
			Flags:     tx.Flags,
		})
	}

	started := time.Now()
	assessment, tier := e.assess(func(s Scorer) (*Assessment, error) {
		return s.ScoreWallet(ctx, features)
	})
	e.metrics.RecordScoring(tier, time.Since(started))

	if err := e.walletRepo.UpdateRisk(ctx, wallet.ID, assessment.RiskScore, assessment.RiskLevel); err != nil {
		return fmt.Errorf("failed to persist wallet assessment: %w", err)
	}

	wallet.RiskScore = assessment.RiskScore
	wallet.RiskLevel = assessment.RiskLevel

	logrus.WithFields(logrus.Fields{
		"address":    wallet.Address,
		"risk_score": assessment.RiskScore,
		"risk_level": assessment.RiskLevel,
		"tier":       tier,
	}).Debug("Wallet scored")

	if assessment.RiskLevel.IsAlertable() && e.sink != nil {
		e.sink.WalletAlert(ctx, wallet)
	}
	return nil
}

// assess runs the remote tier when available and falls back to the rule tier
// on any remote failure. The rule tier cannot fail.
func (e *Engine) assess(score func(Scorer) (*Assessment, error)) (*Assessment, string) {
	if e.remote != nil {
		assessment, err := score(e.remote)
		if err == nil {
			return assessment, "remote"
		}
		logrus.WithError(err).Warn("Remote analyzer unavailable, falling back to rule scorer")
		e.metrics.RecordFallback()
	}

	assessment, _ := score(e.rules)
	return assessment, "rules"
}
