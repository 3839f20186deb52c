package risk

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"aml-monitor/internal/models"
)

var (
	highValueThreshold   = decimal.NewFromInt(50000)
	mediumValueThreshold = decimal.NewFromInt(10000)
	roundAmountStep      = decimal.NewFromInt(1000)
)

// RuleScorer is the deterministic local fallback. It holds only static state
// fixed at construction (the denylist and the frequency threshold), so scoring
// is a pure function of its input features.
type RuleScorer struct {
	denylist      map[string]struct{}
	highFrequency int64
}

// builtinDenylist seeds the rule engine when no denylist is configured.
var builtinDenylist = []string{
	"0x7f367cc41522ce07553e823bf3be79a889debe1b",
	"0x1da5821544e25c636c1417ba96ade4cf6d2f9b5a",
	"0x72a5843cc08275c8171e582972aa4fda8c397b2a",
	"1dice8EMZmqKvrGE4Qc9bUFf9PX3xaYDp",
	"bc1qw4cxpe6sxa5dg6sdwxjph959cw6yztrzl4r54s",
}

// NewRuleScorer builds the fallback scorer. Addresses are matched
// case-insensitively; an empty denylist falls back to the built-in seed.
func NewRuleScorer(denylisted []string, highFrequency int64) *RuleScorer {
	if len(denylisted) == 0 {
		denylisted = builtinDenylist
	}
	if highFrequency <= 0 {
		highFrequency = 10
	}

	denylist := make(map[string]struct{}, len(denylisted))
	for _, address := range denylisted {
		denylist[strings.ToLower(address)] = struct{}{}
	}

	return &RuleScorer{
		denylist:      denylist,
		highFrequency: highFrequency,
	}
}

// ScoreTransaction evaluates the local rule set. It never fails.
func (s *RuleScorer) ScoreTransaction(_ context.Context, features TransactionFeatures) (*Assessment, error) {
	score := 0
	var flags []string

	if features.Amount.GreaterThan(highValueThreshold) {
		score += 40
		flags = append(flags, FlagHighValue)
	} else if features.Amount.GreaterThan(mediumValueThreshold) {
		score += 20
		flags = append(flags, FlagMediumValue)
	}

	if features.Amount.GreaterThan(mediumValueThreshold) && isRoundAmount(features.Amount) {
		score += 15
		flags = append(flags, FlagRoundAmount)
	}

	if features.RecentCount > s.highFrequency {
		score += 25
		flags = append(flags, FlagHighFrequency)
	}

	if s.isDenylisted(features.ToAddress) || s.isDenylisted(features.FromAddress) {
		score += 50
		flags = append(flags, FlagBlacklistedAddress)
	}

	score = clampScore(score)
	return &Assessment{
		RiskScore: score,
		RiskLevel: models.LevelForScore(score),
		Flags:     flags,
	}, nil
}

// ScoreWallet aggregates the wallet's persisted transaction assessments: the
// riskiest transaction sets the base, repeated high-risk activity adds to it.
func (s *RuleScorer) ScoreWallet(_ context.Context, features WalletFeatures) (*Assessment, error) {
	maxScore := 0
	highRiskCount := 0
	flagSet := make(map[string]struct{})

	for _, tx := range features.Transactions {
		if tx.RiskScore > maxScore {
			maxScore = tx.RiskScore
		}
		if tx.RiskLevel.IsAlertable() {
			highRiskCount++
			for _, flag := range tx.Flags {
				flagSet[flag] = struct{}{}
			}
		}
	}

	score := maxScore
	if highRiskCount > 1 {
		score += 5 * (highRiskCount - 1)
	}
	if highRiskCount > 3 {
		flagSet[FlagHighRiskActivity] = struct{}{}
	}
	if int64(len(features.Transactions)) > s.highFrequency {
		score += 10
		flagSet[FlagHighFrequency] = struct{}{}
	}

	flags := make([]string, 0, len(flagSet))
	for flag := range flagSet {
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	score = clampScore(score)
	return &Assessment{
		RiskScore: score,
		RiskLevel: models.LevelForScore(score),
		Flags:     flags,
	}, nil
}

func (s *RuleScorer) isDenylisted(address string) bool {
	if address == "" {
		return false
	}
	_, found := s.denylist[strings.ToLower(address)]
	return found
}

// isRoundAmount reports whether the amount is an exact multiple of 1000.
func isRoundAmount(amount decimal.Decimal) bool {
	return amount.Mod(roundAmountStep).IsZero()
}
