package models

// RiskLevel is the categorical band derived from a 0-100 risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Fixed score thresholds. Every scorer output is mapped through this function
// so remote and rule-based results land on the same bands.
const (
	ThresholdMedium   = 30
	ThresholdHigh     = 50
	ThresholdCritical = 70
)

// LevelForScore maps a risk score to its risk level.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskLevelCritical
	case score >= ThresholdHigh:
		return RiskLevelHigh
	case score >= ThresholdMedium:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// IsAlertable reports whether the level is high enough to raise an alert.
func (l RiskLevel) IsAlertable() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}
