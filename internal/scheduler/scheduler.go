package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/config"
	"aml-monitor/internal/models"
	"aml-monitor/internal/monitoring"
	"aml-monitor/internal/repository"
)

// Runner is the per-wallet pipeline the scheduler drives. *pipeline.Pipeline
// is the production implementation.
type Runner interface {
	ProcessWallet(ctx context.Context, wallet *models.Wallet) (int, error)
	RescoreUnanalyzed(ctx context.Context, limit int) (int, error)
}

// Scheduler drives continuous monitoring: on every tick it claims the stalest
// monitored wallets and runs the pipeline over them with bounded concurrency.
// One misbehaving wallet never takes down the tick.
type Scheduler struct {
	cron      *cron.Cron
	pipe      Runner
	wallets   repository.WalletRepository
	metrics   *monitoring.Metrics
	cfg       config.MonitorConfig
	ticking   sync.Mutex
	baseCtx   context.Context
	cancelCtx context.CancelFunc
}

func NewScheduler(
	pipe Runner,
	wallets repository.WalletRepository,
	metrics *monitoring.Metrics,
	cfg config.MonitorConfig,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(),
		pipe:      pipe,
		wallets:   wallets,
		metrics:   metrics,
		cfg:       cfg,
		baseCtx:   ctx,
		cancelCtx: cancel,
	}
}

// Start registers the tick job and begins scheduling.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("failed to schedule monitor tick: %w", err)
	}

	s.cron.Start()
	logrus.WithFields(logrus.Fields{
		"interval":    s.cfg.Interval,
		"staleness":   s.cfg.Staleness,
		"batch_size":  s.cfg.BatchSize,
		"concurrency": s.cfg.Concurrency,
	}).Info("Monitoring scheduler started")
	return nil
}

// Stop halts scheduling and waits for the running tick to finish, bounded by
// the configured shutdown grace.
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	// An in-flight tick keeps its context until the grace window runs out, so
	// a wallet mid-poll can finish its cycle cleanly.
	select {
	case <-cronCtx.Done():
		logrus.Info("Monitoring scheduler stopped")
	case <-time.After(grace):
		logrus.Warn("Monitoring scheduler shutdown grace elapsed, abandoning running tick")
	}
	s.cancelCtx()
}

// tick runs one scheduling cycle. Ticks never overlap: if the previous one is
// still running, this one is skipped.
func (s *Scheduler) tick() {
	if !s.ticking.TryLock() {
		logrus.Warn("Previous monitoring tick still running, skipping")
		return
	}
	defer s.ticking.Unlock()

	started := time.Now()
	defer func() {
		s.metrics.RecordTick(time.Since(started))
	}()

	ctx := s.baseCtx
	cutoff := time.Now().UTC().Add(-s.cfg.Staleness)
	stale, err := s.wallets.FindStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		logrus.WithError(err).Error("Failed to load stale wallets")
		return
	}
	if len(stale) > 0 {
		logrus.WithField("count", len(stale)).Debug("Polling stale wallets")
	}

	s.processBatch(ctx, stale)

	if s.cfg.RescoreLimit > 0 {
		if picked, err := s.pipe.RescoreUnanalyzed(ctx, s.cfg.RescoreLimit); err != nil {
			logrus.WithError(err).Error("Unanalyzed re-score sweep failed")
		} else if picked > 0 {
			logrus.WithField("count", picked).Info("Re-scored previously unanalyzed transactions")
		}
	}
}

// processBatch fans the batch out over a bounded worker pool.
func (s *Scheduler) processBatch(ctx context.Context, wallets []*models.Wallet) {
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, wallet := range wallets {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(w *models.Wallet) {
			defer wg.Done()
			defer func() { <-sem }()
			s.processWallet(ctx, w)
		}(wallet)
	}
	wg.Wait()
}

func (s *Scheduler) processWallet(ctx context.Context, wallet *models.Wallet) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordWalletPolled("panic")
			logrus.WithFields(logrus.Fields{
				"address": wallet.Address,
				"panic":   r,
			}).Error("Wallet pipeline panicked")
		}
	}()

	if _, err := s.pipe.ProcessWallet(ctx, wallet); err != nil {
		s.metrics.RecordWalletPolled("error")
		logrus.WithError(err).WithField("address", wallet.Address).
			Error("Wallet pipeline failed")
		return
	}
	s.metrics.RecordWalletPolled("ok")
}
