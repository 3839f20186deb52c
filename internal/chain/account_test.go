package chain

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

const testEthAddress = "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"

func newTestAccountAdapter(t *testing.T, handler http.HandlerFunc) Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := newProviderClient(server.URL, config.ProviderConfig{RatePerSec: 1000})
	return newAccountAdapter(models.BlockchainEthereum, client, 50)
}

func TestAccountAdapter_ValidateAddress(t *testing.T) {
	adapter := newAccountAdapter(models.BlockchainEthereum, nil, 50)

	assert.True(t, adapter.ValidateAddress(testEthAddress))
	assert.True(t, adapter.ValidateAddress("0x90F8BF6A479F320EAD074411A4B0E7944EA8C9C1"))
	assert.False(t, adapter.ValidateAddress("1dice8EMZmqKvrGE4Qc9bUFf9PX3xaYDp"))
	assert.False(t, adapter.ValidateAddress("0x90f8bf6a"))
	assert.False(t, adapter.ValidateAddress("0x90f8bf6a479f320ead074411a4b0e7944ea8c9zz"))
	assert.False(t, adapter.ValidateAddress(""))
}

func TestAccountAdapter_FetchTransactions(t *testing.T) {
	t.Run("normalizes provider records", func(t *testing.T) {
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "account", r.URL.Query().Get("module"))
			assert.Equal(t, "txlist", r.URL.Query().Get("action"))
			assert.Equal(t, testEthAddress, r.URL.Query().Get("address"))

			w.Write([]byte(`{
				"status": "1",
				"message": "OK",
				"result": [
					{
						"hash": "0xaaa",
						"from": "0xFFF8bf6a479f320ead074411a4b0e7944ea8c9c1",
						"to": "` + testEthAddress + `",
						"value": "1500000000000000000",
						"timeStamp": "1700000000"
					}
				]
			}`))
		})

		txs := adapter.FetchTransactions(context.Background(), testEthAddress)

		assert.Len(t, txs, 1)
		assert.Equal(t, "0xaaa", txs[0].Hash)
		assert.Equal(t, "0xfff8bf6a479f320ead074411a4b0e7944ea8c9c1", txs[0].FromAddress)
		assert.Equal(t, testEthAddress, txs[0].ToAddress)
		assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(1.5)), "wei should convert to ether")
		assert.Equal(t, int64(1700000000), txs[0].Timestamp.Unix())
		assert.Equal(t, models.BlockchainEthereum, txs[0].Blockchain)
	})

	t.Run("skips malformed records", func(t *testing.T) {
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"status": "1",
				"message": "OK",
				"result": [
					{"hash": "0xbad1", "from": "a", "to": "b", "value": "not-a-number", "timeStamp": "1700000000"},
					{"hash": "0xbad2", "from": "a", "to": "b", "value": "100", "timeStamp": "yesterday"},
					{"hash": "", "from": "a", "to": "b", "value": "100", "timeStamp": "1700000000"},
					{"hash": "0xok", "from": "a", "to": "b", "value": "100", "timeStamp": "1700000000"}
				]
			}`))
		})

		txs := adapter.FetchTransactions(context.Background(), testEthAddress)

		assert.Len(t, txs, 1)
		assert.Equal(t, "0xok", txs[0].Hash)
	})

	t.Run("empty result status is not an error", func(t *testing.T) {
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": []}`))
		})

		txs := adapter.FetchTransactions(context.Background(), testEthAddress)
		assert.Empty(t, txs)
	})

	t.Run("provider error payload yields empty batch", func(t *testing.T) {
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": "0", "message": "NOTOK", "result": []}`))
		})

		txs := adapter.FetchTransactions(context.Background(), testEthAddress)
		assert.Empty(t, txs)
	})

	t.Run("provider outage yields empty batch", func(t *testing.T) {
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		txs := adapter.FetchTransactions(context.Background(), testEthAddress)
		assert.Empty(t, txs)
	})

	t.Run("chain mismatch skips the provider entirely", func(t *testing.T) {
		called := false
		adapter := newTestAccountAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		txs := adapter.FetchTransactions(context.Background(), "1dice8EMZmqKvrGE4Qc9bUFf9PX3xaYDp")

		assert.Empty(t, txs)
		assert.False(t, called, "mismatched address must not hit the provider")
	})
}
