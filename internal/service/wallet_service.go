package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/cache"
	"aml-monitor/internal/models"
	"aml-monitor/internal/pipeline"
	"aml-monitor/internal/repository"
)

// Scanner runs one monitoring cycle for a wallet. *pipeline.Pipeline is the
// production implementation.
type Scanner interface {
	ProcessWallet(ctx context.Context, wallet *models.Wallet) (int, error)
}

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidAddress    = errors.New("address does not match the blockchain format")
	ErrChainNotSupported = errors.New("blockchain is not supported")

	// ErrWalletExists mirrors the store-level duplicate so callers handle one
	// error regardless of which layer caught it first.
	ErrWalletExists = repository.ErrWalletExists
)

var validate = validator.New()

// RegisterWalletRequest is the inbound payload for wallet registration.
type RegisterWalletRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Address    string `json:"address" validate:"required,min=26,max=64"`
	Blockchain string `json:"blockchain" validate:"required"`
}

// ScanResult reports what an on-demand scan found.
type ScanResult struct {
	Wallet          *models.Wallet `json:"wallet"`
	NewTransactions int            `json:"new_transactions"`
}

// WalletService covers wallet registration, reads and on-demand scans.
type WalletService interface {
	RegisterWallet(ctx context.Context, req *RegisterWalletRequest) (*models.Wallet, error)
	GetWallet(ctx context.Context, address string) (*models.Wallet, error)
	GetWalletTransactions(ctx context.Context, address string, limit, offset int) ([]*models.Transaction, error)
	GetTransaction(ctx context.Context, hash string) (*models.Transaction, error)
	ListUserWallets(ctx context.Context, userID int64) ([]*models.Wallet, error)
	SetMonitoring(ctx context.Context, address string, enabled bool) (*models.Wallet, error)
	ScanWallet(ctx context.Context, address string) (*ScanResult, error)
}

type walletService struct {
	wallets repository.WalletRepository
	txRepo  repository.TransactionRepository
	pipe    Scanner
	chains  pipeline.Fetcher
	cache   cache.CacheService
}

func NewWalletService(
	wallets repository.WalletRepository,
	txRepo repository.TransactionRepository,
	pipe Scanner,
	chains pipeline.Fetcher,
	cacheService cache.CacheService,
) WalletService {
	return &walletService{
		wallets: wallets,
		txRepo:  txRepo,
		pipe:    pipe,
		chains:  chains,
		cache:   cacheService,
	}
}

// RegisterWallet validates and stores a new monitored wallet, then kicks off
// its first scan in the background so risk data shows up without waiting for
// the next scheduler tick.
func (s *walletService) RegisterWallet(ctx context.Context, req *RegisterWalletRequest) (*models.Wallet, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid registration request: %w", err)
	}

	blockchain, err := models.ParseBlockchain(req.Blockchain)
	if err != nil {
		return nil, ErrChainNotSupported
	}

	adapter, ok := s.chains.For(blockchain)
	if !ok {
		return nil, ErrChainNotSupported
	}
	if !adapter.ValidateAddress(req.Address) {
		return nil, ErrInvalidAddress
	}

	wallet := models.NewWallet(req.UserID, req.Address, blockchain)
	if err := wallet.Validate(); err != nil {
		return nil, err
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"address":    wallet.Address,
		"blockchain": wallet.Blockchain,
		"user_id":    wallet.UserID,
	}).Info("Wallet registered")

	if s.cache != nil {
		if denylisted, err := s.cache.IsDenylisted(ctx, wallet.Address); err == nil && denylisted {
			logrus.WithField("address", wallet.Address).
				Warn("Registered wallet address is on the denylist")
		}
	}

	go s.initialScan(wallet)

	return wallet, nil
}

// initialScan runs the first pipeline cycle outside the request lifecycle.
func (s *walletService) initialScan(wallet *models.Wallet) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.pipe.ProcessWallet(ctx, wallet); err != nil {
		logrus.WithError(err).WithField("address", wallet.Address).
			Warn("Initial wallet scan failed, scheduler will retry")
	}
}

// GetWallet reads a wallet, serving from cache when the cached assessment is
// still fresh.
func (s *walletService) GetWallet(ctx context.Context, address string) (*models.Wallet, error) {
	if s.cache != nil {
		if wallet, found := s.cache.GetCachedWalletRisk(ctx, address); found {
			return wallet, nil
		}
	}

	wallet, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, ErrWalletNotFound
	}

	if s.cache != nil {
		if err := s.cache.CacheWalletRisk(ctx, wallet, 5*time.Minute); err != nil {
			logrus.WithError(err).Debug("Failed to cache wallet")
		}
	}
	return wallet, nil
}

func (s *walletService) GetWalletTransactions(ctx context.Context, address string, limit, offset int) ([]*models.Transaction, error) {
	wallet, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, ErrWalletNotFound
	}
	return s.txRepo.ListByWallet(ctx, wallet.ID, limit, offset)
}

var ErrTransactionNotFound = errors.New("transaction not found")

func (s *walletService) GetTransaction(ctx context.Context, hash string) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *walletService) ListUserWallets(ctx context.Context, userID int64) ([]*models.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

// SetMonitoring pauses or resumes continuous polling for a wallet. A paused
// wallet keeps its history and risk state but drops out of the stale queue.
func (s *walletService) SetMonitoring(ctx context.Context, address string, enabled bool) (*models.Wallet, error) {
	wallet, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, ErrWalletNotFound
	}

	if err := s.wallets.SetMonitored(ctx, wallet.ID, enabled); err != nil {
		return nil, err
	}
	wallet.IsMonitored = enabled

	if s.cache != nil {
		if err := s.cache.Delete(ctx, "wallet:"+address); err != nil {
			logrus.WithError(err).Debug("Failed to evict wallet cache entry")
		}
	}

	logrus.WithFields(logrus.Fields{
		"address":   address,
		"monitored": enabled,
	}).Info("Wallet monitoring updated")
	return wallet, nil
}

// ScanWallet runs one pipeline cycle immediately.
func (s *walletService) ScanWallet(ctx context.Context, address string) (*ScanResult, error) {
	wallet, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, ErrWalletNotFound
	}

	created, err := s.pipe.ProcessWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return &ScanResult{Wallet: wallet, NewTransactions: created}, nil
}
