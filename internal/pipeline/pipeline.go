package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"aml-monitor/internal/cache"
	"aml-monitor/internal/chain"
	"aml-monitor/internal/models"
	"aml-monitor/internal/monitoring"
	"aml-monitor/internal/repository"
)

// walletCacheTTL bounds how long a wallet read can lag its latest assessment.
const walletCacheTTL = 5 * time.Minute

// Fetcher resolves the chain adapter for a blockchain. *chain.Registry is the
// production implementation.
type Fetcher interface {
	For(blockchain models.Blockchain) (chain.Adapter, bool)
}

// Assessor scores transactions and wallets. *risk.Engine is the production
// implementation.
type Assessor interface {
	ScoreTransaction(ctx context.Context, wallet *models.Wallet, tx *models.Transaction) error
	ScoreWallet(ctx context.Context, wallet *models.Wallet) error
}

// Pipeline runs the per-wallet monitoring cycle: fetch from the chain
// provider, ingest what is new, score it, refresh the wallet aggregate.
type Pipeline struct {
	chains   Fetcher
	assessor Assessor
	txRepo   repository.TransactionRepository
	wallets  repository.WalletRepository
	cache    cache.CacheService
	metrics  *monitoring.Metrics
}

func NewPipeline(
	chains Fetcher,
	assessor Assessor,
	txRepo repository.TransactionRepository,
	wallets repository.WalletRepository,
	cacheService cache.CacheService,
	metrics *monitoring.Metrics,
) *Pipeline {
	return &Pipeline{
		chains:   chains,
		assessor: assessor,
		txRepo:   txRepo,
		wallets:  wallets,
		cache:    cacheService,
		metrics:  metrics,
	}
}

// ProcessWallet runs one full cycle for a wallet and returns how many new
// transactions were ingested. The wallet's last_polled_at is advanced even on
// an empty batch, so a quiet wallet does not stay at the front of the stale
// queue.
func (p *Pipeline) ProcessWallet(ctx context.Context, wallet *models.Wallet) (int, error) {
	adapter, ok := p.chains.For(wallet.Blockchain)
	if !ok {
		return 0, fmt.Errorf("no chain adapter configured for %s", wallet.Blockchain)
	}

	fetchStart := time.Now()
	raw := adapter.FetchTransactions(ctx, wallet.Address)
	p.metrics.RecordFetch(string(wallet.Blockchain), len(raw), time.Since(fetchStart))

	created, err := p.Ingest(ctx, wallet, raw)
	if err != nil {
		return 0, err
	}

	for _, tx := range created {
		if err := p.assessor.ScoreTransaction(ctx, wallet, tx); err != nil {
			logrus.WithError(err).WithField("hash", tx.Hash).
				Error("Failed to score ingested transaction")
		}
	}

	if len(created) > 0 {
		if err := p.assessor.ScoreWallet(ctx, wallet); err != nil {
			logrus.WithError(err).WithField("address", wallet.Address).
				Error("Failed to refresh wallet risk")
		}
		p.refreshCache(ctx, wallet)
	}

	now := time.Now().UTC()
	if err := p.wallets.UpdateLastPolled(ctx, wallet.ID, now); err != nil {
		return len(created), fmt.Errorf("failed to advance poll cursor: %w", err)
	}
	wallet.LastPolledAt = now

	return len(created), nil
}

// Ingest persists the raw batch, skipping everything already stored. Known
// hashes are filtered in one store round-trip before the per-record upserts,
// and the unique hash index makes concurrent ingestion of the same batch safe.
func (p *Pipeline) Ingest(ctx context.Context, wallet *models.Wallet, raw []chain.RawTransaction) ([]*models.Transaction, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	known, err := p.txRepo.FindHashesByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hashes: %w", err)
	}

	var created []*models.Transaction
	for _, record := range raw {
		if _, seen := known[record.Hash]; seen {
			continue
		}

		tx := models.NewTransaction(
			wallet.ID,
			record.Hash,
			record.FromAddress,
			record.ToAddress,
			record.Amount,
			record.Timestamp,
			record.Blockchain,
		)
		if err := tx.Validate(); err != nil {
			logrus.WithError(err).WithField("hash", record.Hash).
				Warn("Dropping invalid chain record")
			continue
		}

		inserted, err := p.txRepo.UpsertByHash(ctx, tx)
		if err != nil {
			logrus.WithError(err).WithField("hash", record.Hash).
				Error("Failed to persist transaction")
			continue
		}
		if inserted {
			created = append(created, tx)
		}
	}

	p.metrics.RecordIngested(len(created))
	if len(created) > 0 {
		logrus.WithFields(logrus.Fields{
			"address": wallet.Address,
			"fetched": len(raw),
			"new":     len(created),
		}).Info("Ingested new transactions")
	}
	return created, nil
}

// RescoreUnanalyzed retries transactions whose assessment never got persisted,
// oldest first. It returns how many were picked up.
func (p *Pipeline) RescoreUnanalyzed(ctx context.Context, limit int) (int, error) {
	pending, err := p.txRepo.FindUnanalyzed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load unanalyzed transactions: %w", err)
	}

	for _, tx := range pending {
		if err := p.assessor.ScoreTransaction(ctx, nil, tx); err != nil {
			logrus.WithError(err).WithField("hash", tx.Hash).
				Error("Failed to re-score transaction")
		}
	}
	return len(pending), nil
}

func (p *Pipeline) refreshCache(ctx context.Context, wallet *models.Wallet) {
	if p.cache == nil {
		return
	}
	if err := p.cache.CacheWalletRisk(ctx, wallet, walletCacheTTL); err != nil {
		logrus.WithError(err).WithField("address", wallet.Address).
			Debug("Failed to refresh wallet cache")
	}
}
