// Package decision maps a market snapshot to a positioning recommendation.
package decision

import (
	"github.com/shopspring/decimal"

	"github.com/tjfontaine/mfea-gateway/internal/market"
)

// Recommendation is one of a fixed set of positioning labels.
type Recommendation string

const (
	AggressiveLeveragedLong Recommendation = "aggressive leveraged-long"
	ModerateLeveragedLong   Recommendation = "moderate leveraged-long"
	BarbellLongDuration     Recommendation = "barbell with long-duration bonds"
	DefensiveUnleveraged    Recommendation = "defensive unleveraged"
)

// All lists every label Decide can return.
var All = []Recommendation{
	AggressiveLeveragedLong,
	ModerateLeveragedLong,
	BarbellLongDuration,
	DefensiveUnleveraged,
}

var (
	// AggressiveVolatilityCeiling is the annualized volatility, in percent, below which
	// an uptrend earns the aggressive label.
	AggressiveVolatilityCeiling = decimal.NewFromInt(14)
	// ModerateVolatilityCeiling is the annualized volatility below which an uptrend
	// earns the moderate label.
	ModerateVolatilityCeiling = decimal.NewFromInt(24)
	// BarbellRateCeiling is the risk-free rate, in percent, below which the barbell
	// label is chosen over the defensive one.
	BarbellRateCeiling = decimal.NewFromInt(4)
)

// Decide is pure and total: every snapshot yields exactly one label. An absent
// risk-free rate never selects the barbell label.
func Decide(s market.Snapshot) Recommendation {
	if s.LastClose.GreaterThan(s.SMA) {
		switch {
		case s.Volatility.LessThan(AggressiveVolatilityCeiling):
			return AggressiveLeveragedLong
		case s.Volatility.LessThan(ModerateVolatilityCeiling):
			return ModerateLeveragedLong
		}
	}

	if s.RiskFreeRate.Valid && s.RiskFreeRate.Decimal.LessThan(BarbellRateCeiling) {
		return BarbellLongDuration
	}
	return DefensiveUnleveraged
}
