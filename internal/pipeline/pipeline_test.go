package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"aml-monitor/internal/chain"
	"aml-monitor/internal/models"
	"aml-monitor/internal/repository/mocks"
)

type stubAdapter struct {
	blockchain models.Blockchain
	batch      []chain.RawTransaction
}

func (s *stubAdapter) Blockchain() models.Blockchain { return s.blockchain }
func (s *stubAdapter) ValidateAddress(string) bool   { return true }
func (s *stubAdapter) FetchTransactions(context.Context, string) []chain.RawTransaction {
	return s.batch
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

type mockAssessor struct {
	mock.Mock
}

func (m *mockAssessor) ScoreTransaction(ctx context.Context, wallet *models.Wallet, tx *models.Transaction) error {
	args := m.Called(ctx, wallet, tx)
	return args.Error(0)
}

func (m *mockAssessor) ScoreWallet(ctx context.Context, wallet *models.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func rawTx(hash string, amount int64) chain.RawTransaction {
	return chain.RawTransaction{
		Hash:        hash,
		FromAddress: "0xsender",
		ToAddress:   "0xreceiver",
		Amount:      decimal.NewFromInt(amount),
		Timestamp:   time.Now().UTC(),
		Blockchain:  models.BlockchainEthereum,
	}
}

func testWallet() *models.Wallet {
	wallet := models.NewWallet(7, "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1", models.BlockchainEthereum)
	wallet.ID = primitive.NewObjectID()
	return wallet
}

func TestPipeline_ProcessWallet(t *testing.T) {
	t.Run("ingests and scores only unseen transactions", func(t *testing.T) {
		wallet := testWallet()
		txRepo := new(mocks.MockTransactionRepository)
		walletRepo := new(mocks.MockWalletRepository)
		assessor := new(mockAssessor)

		fetcher := &stubFetcher{adapter: &stubAdapter{
			blockchain: models.BlockchainEthereum,
			batch:      []chain.RawTransaction{rawTx("0xknown", 10), rawTx("0xnew", 20)},
		}}

		txRepo.On("FindHashesByWallet", mock.Anything, wallet.ID).
			Return(map[string]struct{}{"0xknown": {}}, nil)
		txRepo.On("UpsertByHash", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
			return tx.Hash == "0xnew"
		})).Return(true, nil)
		assessor.On("ScoreTransaction", mock.Anything, wallet, mock.Anything).Return(nil)
		assessor.On("ScoreWallet", mock.Anything, wallet).Return(nil)
		walletRepo.On("UpdateLastPolled", mock.Anything, wallet.ID, mock.Anything).Return(nil)

		pipe := NewPipeline(fetcher, assessor, txRepo, walletRepo, nil, nil)
		created, err := pipe.ProcessWallet(context.Background(), wallet)

		assert.NoError(t, err)
		assert.Equal(t, 1, created)
		txRepo.AssertExpectations(t)
		assessor.AssertNumberOfCalls(t, "ScoreTransaction", 1)
		assessor.AssertNumberOfCalls(t, "ScoreWallet", 1)
		walletRepo.AssertExpectations(t)
	})

	t.Run("re-poll with nothing new is a no-op except the cursor", func(t *testing.T) {
		wallet := testWallet()
		txRepo := new(mocks.MockTransactionRepository)
		walletRepo := new(mocks.MockWalletRepository)
		assessor := new(mockAssessor)

		fetcher := &stubFetcher{adapter: &stubAdapter{
			blockchain: models.BlockchainEthereum,
			batch:      []chain.RawTransaction{rawTx("0xknown", 10)},
		}}

		txRepo.On("FindHashesByWallet", mock.Anything, wallet.ID).
			Return(map[string]struct{}{"0xknown": {}}, nil)
		walletRepo.On("UpdateLastPolled", mock.Anything, wallet.ID, mock.Anything).Return(nil)

		pipe := NewPipeline(fetcher, assessor, txRepo, walletRepo, nil, nil)
		created, err := pipe.ProcessWallet(context.Background(), wallet)

		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		assessor.AssertNotCalled(t, "ScoreTransaction", mock.Anything, mock.Anything, mock.Anything)
		assessor.AssertNotCalled(t, "ScoreWallet", mock.Anything, mock.Anything)
		walletRepo.AssertExpectations(t)
	})

	t.Run("concurrent insert of the same hash is not double-counted", func(t *testing.T) {
		wallet := testWallet()
		txRepo := new(mocks.MockTransactionRepository)
		walletRepo := new(mocks.MockWalletRepository)
		assessor := new(mockAssessor)

		fetcher := &stubFetcher{adapter: &stubAdapter{
			blockchain: models.BlockchainEthereum,
			batch:      []chain.RawTransaction{rawTx("0xracing", 10)},
		}}

		txRepo.On("FindHashesByWallet", mock.Anything, wallet.ID).
			Return(map[string]struct{}{}, nil)
		// Another pipeline instance won the upsert race.
		txRepo.On("UpsertByHash", mock.Anything, mock.Anything).Return(false, nil)
		walletRepo.On("UpdateLastPolled", mock.Anything, wallet.ID, mock.Anything).Return(nil)

		pipe := NewPipeline(fetcher, assessor, txRepo, walletRepo, nil, nil)
		created, err := pipe.ProcessWallet(context.Background(), wallet)

		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		assessor.AssertNotCalled(t, "ScoreTransaction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty batch still advances the poll cursor", func(t *testing.T) {
		wallet := testWallet()
		before := wallet.LastPolledAt
		txRepo := new(mocks.MockTransactionRepository)
		walletRepo := new(mocks.MockWalletRepository)

		fetcher := &stubFetcher{adapter: &stubAdapter{blockchain: models.BlockchainEthereum}}
		walletRepo.On("UpdateLastPolled", mock.Anything, wallet.ID, mock.Anything).Return(nil)

		pipe := NewPipeline(fetcher, new(mockAssessor), txRepo, walletRepo, nil, nil)
		created, err := pipe.ProcessWallet(context.Background(), wallet)

		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		assert.True(t, wallet.LastPolledAt.After(before))
	})

	t.Run("missing adapter is an error", func(t *testing.T) {
		wallet := testWallet()
		pipe := NewPipeline(&stubFetcher{}, new(mockAssessor), nil, nil, nil, nil)

		_, err := pipe.ProcessWallet(context.Background(), wallet)
		assert.Error(t, err)
	})
}

func TestPipeline_RescoreUnanalyzed(t *testing.T) {
	txRepo := new(mocks.MockTransactionRepository)
	assessor := new(mockAssessor)

	pending := []*models.Transaction{
		{ID: primitive.NewObjectID(), Hash: "0xstuck1"},
		{ID: primitive.NewObjectID(), Hash: "0xstuck2"},
	}
	txRepo.On("FindUnanalyzed", mock.Anything, 50).Return(pending, nil)
	assessor.On("ScoreTransaction", mock.Anything, (*models.Wallet)(nil), mock.Anything).Return(nil)

	pipe := NewPipeline(&stubFetcher{}, assessor, txRepo, nil, nil, nil)
	picked, err := pipe.RescoreUnanalyzed(context.Background(), 50)

	assert.NoError(t, err)
	assert.Equal(t, 2, picked)
	assessor.AssertNumberOfCalls(t, "ScoreTransaction", 2)
}
