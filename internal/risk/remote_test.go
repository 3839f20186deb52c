package risk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"aml-monitor/internal/config"
	"aml-monitor/internal/models"
)

func TestRemoteScorer_ScoreTransaction(t *testing.T) {
	t.Run("parses the analyzer verdict", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/analyze/transaction", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

			w.Write([]byte(`{"risk_score": 62, "risk_level": "SEVERE", "flags": ["MIXER_PROXIMITY"]}`))
		}))
		defer server.Close()

		scorer := NewRemoteScorer(config.AnalyzerConfig{BaseURL: server.URL, APIKey: "secret"})
		assessment, err := scorer.ScoreTransaction(context.Background(), TransactionFeatures{
			Hash:   "0xabc",
			Amount: decimal.NewFromInt(100),
		})

		assert.NoError(t, err)
		assert.Equal(t, 62, assessment.RiskScore)
		// The analyzer's own band name is ignored in favor of the shared thresholds.
		assert.Equal(t, models.RiskLevelHigh, assessment.RiskLevel)
		assert.Equal(t, []string{"MIXER_PROXIMITY"}, assessment.Flags)
	})

	t.Run("out-of-range scores are clamped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"risk_score": 250, "risk_level": "CRITICAL"}`))
		}))
		defer server.Close()

		scorer := NewRemoteScorer(config.AnalyzerConfig{BaseURL: server.URL})
		assessment, err := scorer.ScoreTransaction(context.Background(), TransactionFeatures{})

		assert.NoError(t, err)
		assert.Equal(t, 100, assessment.RiskScore)
		assert.Equal(t, models.RiskLevelCritical, assessment.RiskLevel)
		assert.NotNil(t, assessment.Flags)
	})

	t.Run("server error is reported", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		scorer := NewRemoteScorer(config.AnalyzerConfig{BaseURL: server.URL})
		_, err := scorer.ScoreTransaction(context.Background(), TransactionFeatures{})
		assert.Error(t, err)
	})

	t.Run("unreachable analyzer is reported", func(t *testing.T) {
		scorer := NewRemoteScorer(config.AnalyzerConfig{BaseURL: "http://127.0.0.1:1"})
		_, err := scorer.ScoreTransaction(context.Background(), TransactionFeatures{})
		assert.Error(t, err)
	})
}

func TestRemoteScorer_ScoreWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze/wallet", r.URL.Path)
		w.Write([]byte(`{"risk_score": 20}`))
	}))
	defer server.Close()

	scorer := NewRemoteScorer(config.AnalyzerConfig{BaseURL: server.URL})
	assessment, err := scorer.ScoreWallet(context.Background(), WalletFeatures{
		Address:    "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1",
		Blockchain: models.BlockchainEthereum,
	})

	assert.NoError(t, err)
	assert.Equal(t, 20, assessment.RiskScore)
	assert.Equal(t, models.RiskLevelLow, assessment.RiskLevel)
}
