package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"aml-monitor/internal/chain"
	"aml-monitor/internal/models"
	"aml-monitor/internal/repository"
	"aml-monitor/internal/repository/mocks"
)

type stubAdapter struct {
	valid bool
}

func (s *stubAdapter) Blockchain() models.Blockchain { return models.BlockchainEthereum }
func (s *stubAdapter) ValidateAddress(string) bool   { return s.valid }
func (s *stubAdapter) FetchTransactions(context.Context, string) []chain.RawTransaction {
	return nil
}

type stubFetcher struct {
	adapter chain.Adapter
}

func (s *stubFetcher) For(models.Blockchain) (chain.Adapter, bool) {
	if s.adapter == nil {
		return nil, false
	}
	return s.adapter, true
}

type stubScanner struct{}

func (stubScanner) ProcessWallet(context.Context, *models.Wallet) (int, error) { return 0, nil }

func TestWalletService_RegisterWallet(t *testing.T) {
	validAddress := "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"

	tests := []struct {
		name        string
		request     *RegisterWalletRequest
		fetcher     *stubFetcher
		setupMocks  func(*mocks.MockWalletRepository)
		expectedErr error
	}{
		{
			name: "successful registration",
			request: &RegisterWalletRequest{
				UserID: 42, Address: validAddress, Blockchain: "ethereum",
			},
			fetcher: &stubFetcher{adapter: &stubAdapter{valid: true}},
			setupMocks: func(wr *mocks.MockWalletRepository) {
				wr.On("Create", mock.Anything, mock.MatchedBy(func(w *models.Wallet) bool {
					return w.UserID == 42 && w.Address == validAddress && w.IsMonitored
				})).Return(nil)
			},
		},
		{
			name: "unsupported blockchain",
			request: &RegisterWalletRequest{
				UserID: 42, Address: validAddress, Blockchain: "dogecoin",
			},
			fetcher:     &stubFetcher{adapter: &stubAdapter{valid: true}},
			expectedErr: ErrChainNotSupported,
		},
		{
			name: "blockchain without configured adapter",
			request: &RegisterWalletRequest{
				UserID: 42, Address: validAddress, Blockchain: "ethereum",
			},
			fetcher:     &stubFetcher{},
			expectedErr: ErrChainNotSupported,
		},
		{
			name: "address format mismatch",
			request: &RegisterWalletRequest{
				UserID: 42, Address: "1dice8EMZmqKvrGE4Qc9bUFf9PX3xaYDp", Blockchain: "ethereum",
			},
			fetcher:     &stubFetcher{adapter: &stubAdapter{valid: false}},
			expectedErr: ErrInvalidAddress,
		},
		{
			name: "duplicate registration",
			request: &RegisterWalletRequest{
				UserID: 42, Address: validAddress, Blockchain: "ethereum",
			},
			fetcher: &stubFetcher{adapter: &stubAdapter{valid: true}},
			setupMocks: func(wr *mocks.MockWalletRepository) {
				wr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrWalletExists)
			},
			expectedErr: ErrWalletExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			walletRepo := new(mocks.MockWalletRepository)
			if tt.setupMocks != nil {
				tt.setupMocks(walletRepo)
			}

			svc := NewWalletService(walletRepo, nil, stubScanner{}, tt.fetcher, nil)
			wallet, err := svc.RegisterWallet(context.Background(), tt.request)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, wallet)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, wallet)
			walletRepo.AssertExpectations(t)
		})
	}

	t.Run("missing fields fail validation", func(t *testing.T) {
		svc := NewWalletService(nil, nil, stubScanner{}, &stubFetcher{}, nil)

		_, err := svc.RegisterWallet(context.Background(), &RegisterWalletRequest{})
		assert.Error(t, err)

		_, err = svc.RegisterWallet(context.Background(), &RegisterWalletRequest{
			UserID: 42, Address: "short", Blockchain: "ethereum",
		})
		assert.Error(t, err)
	})
}

func TestWalletService_GetWallet(t *testing.T) {
	t.Run("returns stored wallet", func(t *testing.T) {
		walletRepo := new(mocks.MockWalletRepository)
		wallet := models.NewWallet(42, "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1", models.BlockchainEthereum)
		wallet.ID = primitive.NewObjectID()

		walletRepo.On("GetByAddress", mock.Anything, wallet.Address).Return(wallet, nil)

		svc := NewWalletService(walletRepo, nil, stubScanner{}, &stubFetcher{}, nil)
		got, err := svc.GetWallet(context.Background(), wallet.Address)

		assert.NoError(t, err)
		assert.Equal(t, wallet, got)
	})

	t.Run("unknown address", func(t *testing.T) {
		walletRepo := new(mocks.MockWalletRepository)
		walletRepo.On("GetByAddress", mock.Anything, mock.Anything).Return(nil, nil)

		svc := NewWalletService(walletRepo, nil, stubScanner{}, &stubFetcher{}, nil)
		_, err := svc.GetWallet(context.Background(), "0xunknown")

		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestAlertService_MarkAlertRead(t *testing.T) {
	repo := new(mocks.MockAlertRepository)
	svc := NewAlertService(repo)

	t.Run("invalid hex ID", func(t *testing.T) {
		err := svc.MarkAlertRead(context.Background(), "not-an-object-id")
		assert.ErrorIs(t, err, ErrInvalidAlertID)
	})

	t.Run("valid ID delegates to the store", func(t *testing.T) {
		id := primitive.NewObjectID()
		repo.On("MarkRead", mock.Anything, id).Return(nil)

		err := svc.MarkAlertRead(context.Background(), id.Hex())
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
