package models

import (
	"fmt"
	"strings"
)

// Blockchain identifies a supported network.
type Blockchain string

const (
	BlockchainEthereum Blockchain = "ETHEREUM"
	BlockchainPolygon  Blockchain = "POLYGON"
	BlockchainBSC      Blockchain = "BSC"
	BlockchainBitcoin  Blockchain = "BITCOIN"
)

// SupportedBlockchains lists every network the monitor can poll.
var SupportedBlockchains = []Blockchain{
	BlockchainEthereum,
	BlockchainPolygon,
	BlockchainBSC,
	BlockchainBitcoin,
}

// IsAccountChain reports whether the network uses account-style 0x addresses.
func (b Blockchain) IsAccountChain() bool {
	switch b {
	case BlockchainEthereum, BlockchainPolygon, BlockchainBSC:
		return true
	}
	return false
}

// IsUTXOChain reports whether the network uses UTXO-style addresses.
func (b Blockchain) IsUTXOChain() bool {
	return b == BlockchainBitcoin
}

// ParseBlockchain validates and normalizes a blockchain identifier,
// case-insensitively.
func ParseBlockchain(s string) (Blockchain, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for _, b := range SupportedBlockchains {
		if string(b) == normalized {
			return b, nil
		}
	}
	return "", fmt.Errorf("unsupported blockchain: %s", s)
}
