package chain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/config"
	"aml-monitor/internal/models"
)

// RawTransaction is the normalized record every adapter produces: amounts in
// the chain's base unit, timestamps as epoch-based instants.
type RawTransaction struct {
	Hash        string
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	Timestamp   time.Time
	Blockchain  models.Blockchain
}

// Adapter translates a wallet address into normalized transactions for one
// blockchain family.
//
// FetchTransactions never fails past the adapter boundary: provider errors,
// timeouts and malformed payloads are logged and yield an empty batch, since
// the next scheduler tick retries naturally. An address that does not match
// the chain family is a caller bug and also yields an empty batch, without
// touching the provider.
type Adapter interface {
	Blockchain() models.Blockchain
	ValidateAddress(address string) bool
	FetchTransactions(ctx context.Context, address string) []RawTransaction
}

// Registry holds one adapter per configured blockchain.
type Registry struct {
	adapters map[models.Blockchain]Adapter
}

// NewRegistry builds adapters for every provider in the configuration.
// Fallback endpoint selection happens here, once, at construction.
func NewRegistry(cfg *config.Config) *Registry {
	registry := &Registry{
		adapters: make(map[models.Blockchain]Adapter),
	}

	for _, blockchain := range models.SupportedBlockchains {
		providerCfg, ok := cfg.Provider(blockchain)
		if !ok {
			logrus.WithField("blockchain", blockchain).Warn("No provider configured, chain disabled")
			continue
		}

		endpoint := providerCfg.BaseURL
		keyed := providerCfg.APIKey != ""
		if !keyed && providerCfg.FallbackURL != "" {
			endpoint = providerCfg.FallbackURL
			logrus.WithFields(logrus.Fields{
				"blockchain": blockchain,
				"endpoint":   endpoint,
			}).Info("No API key configured, using fallback provider")
		}

		client := newProviderClient(endpoint, providerCfg)
		if blockchain.IsUTXOChain() {
			registry.adapters[blockchain] = newUTXOAdapter(blockchain, client, providerCfg.PageSize)
		} else {
			registry.adapters[blockchain] = newAccountAdapter(blockchain, client, providerCfg.PageSize)
		}
	}

	return registry
}

// For returns the adapter for a blockchain, if one is configured.
func (r *Registry) For(blockchain models.Blockchain) (Adapter, bool) {
	adapter, ok := r.adapters[models.Blockchain(strings.ToUpper(string(blockchain)))]
	return adapter, ok
}

// Blockchains lists the chains with a configured adapter.
func (r *Registry) Blockchains() []models.Blockchain {
	chains := make([]models.Blockchain, 0, len(r.adapters))
	for b := range r.adapters {
		chains = append(chains, b)
	}
	return chains
}
