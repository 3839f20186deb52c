package chain

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/models"
)

// weiDecimals converts between wei and the chain's base coin.
const weiDecimals = 18

// accountAdapter covers account-style chains (Ethereum, Polygon, BSC) through
// etherscan-family transaction list APIs.
type accountAdapter struct {
	blockchain models.Blockchain
	client     *providerClient
	pageSize   int
}

func newAccountAdapter(blockchain models.Blockchain, client *providerClient, pageSize int) Adapter {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &accountAdapter{
		blockchain: blockchain,
		client:     client,
		pageSize:   pageSize,
	}
}

func (a *accountAdapter) Blockchain() models.Blockchain {
	return a.blockchain
}

// ValidateAddress accepts 0x-prefixed 20-byte hex addresses.
func (a *accountAdapter) ValidateAddress(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	for _, c := range address[2:] {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

type accountTxListResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		Hash      string `json:"hash"`
		From      string `json:"from"`
		To        string `json:"to"`
		Value     string `json:"value"`
		TimeStamp string `json:"timeStamp"`
	} `json:"result"`
}

func (a *accountAdapter) FetchTransactions(ctx context.Context, address string) []RawTransaction {
	if !a.ValidateAddress(address) {
		logrus.WithFields(logrus.Fields{
			"blockchain": a.blockchain,
			"address":    address,
		}).Warn("Address does not match account-chain format, skipping fetch")
		return nil
	}

	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("address", address)
	query.Set("page", "1")
	query.Set("offset", strconv.Itoa(a.pageSize))
	query.Set("sort", "desc")
	if a.client.apiKey != "" {
		query.Set("apikey", a.client.apiKey)
	}

	var resp accountTxListResponse
	if err := a.client.getJSON(ctx, "?"+query.Encode(), &resp); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"blockchain": a.blockchain,
			"address":    address,
		}).Warn("Chain provider fetch failed")
		return nil
	}

	// status "0" with message "No transactions found" is a legitimate empty
	// result; any other non-success status is a provider-side error.
	if resp.Status != "1" && !strings.EqualFold(resp.Message, "No transactions found") {
		logrus.WithFields(logrus.Fields{
			"blockchain": a.blockchain,
			"status":     resp.Status,
			"message":    resp.Message,
		}).Warn("Chain provider returned error payload")
		return nil
	}

	transactions := make([]RawTransaction, 0, len(resp.Result))
	for _, record := range resp.Result {
		if record.Hash == "" {
			continue
		}

		wei, err := decimal.NewFromString(record.Value)
		if err != nil {
			logrus.WithField("hash", record.Hash).Debug("Skipping transaction with malformed value")
			continue
		}

		seconds, err := strconv.ParseInt(record.TimeStamp, 10, 64)
		if err != nil {
			logrus.WithField("hash", record.Hash).Debug("Skipping transaction with malformed timestamp")
			continue
		}

		transactions = append(transactions, RawTransaction{
			Hash:        record.Hash,
			FromAddress: strings.ToLower(record.From),
			ToAddress:   strings.ToLower(record.To),
			Amount:      wei.Shift(-weiDecimals),
			Timestamp:   time.Unix(seconds, 0).UTC(),
			Blockchain:  a.blockchain,
		})
		if len(transactions) >= a.pageSize {
			break
		}
	}

	return transactions
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
