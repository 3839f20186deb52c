package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/models"
)

// satoshiDecimals converts between satoshi and BTC.
const satoshiDecimals = 8

// utxoAdapter covers UTXO-style chains (Bitcoin) through blockchain.info-family
// address APIs. The multi-input/multi-output shape is collapsed into a single
// from/to/amount record relative to the watched address.
type utxoAdapter struct {
	blockchain models.Blockchain
	client     *providerClient
	pageSize   int
}

func newUTXOAdapter(blockchain models.Blockchain, client *providerClient, pageSize int) Adapter {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &utxoAdapter{
		blockchain: blockchain,
		client:     client,
		pageSize:   pageSize,
	}
}

func (a *utxoAdapter) Blockchain() models.Blockchain {
	return a.blockchain
}

// ValidateAddress accepts base58 (1.../3...) and bech32 (bc1...) addresses.
// Account-style 0x addresses are a chain mismatch, not a provider error.
func (a *utxoAdapter) ValidateAddress(address string) bool {
	if strings.HasPrefix(address, "0x") {
		return false
	}
	if len(address) < 26 || len(address) > 62 {
		return false
	}
	for _, c := range address {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

type utxoAddressResponse struct {
	Txs []struct {
		Hash   string `json:"hash"`
		Time   int64  `json:"time"`
		Inputs []struct {
			PrevOut struct {
				Addr  string `json:"addr"`
				Value int64  `json:"value"`
			} `json:"prev_out"`
		} `json:"inputs"`
		Out []struct {
			Addr  string `json:"addr"`
			Value int64  `json:"value"`
		} `json:"out"`
	} `json:"txs"`
}

func (a *utxoAdapter) FetchTransactions(ctx context.Context, address string) []RawTransaction {
	if !a.ValidateAddress(address) {
		logrus.WithFields(logrus.Fields{
			"blockchain": a.blockchain,
			"address":    address,
		}).Warn("Address does not match UTXO-chain format, skipping fetch")
		return nil
	}

	path := fmt.Sprintf("/rawaddr/%s?limit=%d", address, a.pageSize)

	var resp utxoAddressResponse
	if err := a.client.getJSON(ctx, path, &resp); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"blockchain": a.blockchain,
			"address":    address,
		}).Warn("Chain provider fetch failed")
		return nil
	}

	transactions := make([]RawTransaction, 0, len(resp.Txs))
	for _, record := range resp.Txs {
		if record.Hash == "" {
			continue
		}

		var received, sentElsewhere int64
		firstCounterparty := ""
		for _, out := range record.Out {
			if out.Addr == address {
				received += out.Value
			} else {
				sentElsewhere += out.Value
				if firstCounterparty == "" {
					firstCounterparty = out.Addr
				}
			}
		}

		firstInput := ""
		spentByWallet := false
		for _, in := range record.Inputs {
			if firstInput == "" {
				firstInput = in.PrevOut.Addr
			}
			if in.PrevOut.Addr == address {
				spentByWallet = true
			}
		}

		tx := RawTransaction{
			Hash:       record.Hash,
			Timestamp:  time.Unix(record.Time, 0).UTC(),
			Blockchain: a.blockchain,
		}
		if spentByWallet {
			// Outgoing: wallet funded the inputs; change outputs back to the
			// wallet are excluded from the transferred amount.
			tx.FromAddress = address
			tx.ToAddress = firstCounterparty
			tx.Amount = decimal.New(sentElsewhere, -satoshiDecimals)
		} else {
			tx.FromAddress = firstInput
			tx.ToAddress = address
			tx.Amount = decimal.New(received, -satoshiDecimals)
		}
		if tx.Amount.IsNegative() {
			continue
		}

		transactions = append(transactions, tx)
		if len(transactions) >= a.pageSize {
			break
		}
	}

	return transactions
}
