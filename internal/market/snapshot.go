// Package market produces point-in-time market snapshots for the decision engine.
package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SMAWindow is the moving-average length in trading days.
	SMAWindow = 220
	// VolatilityWindow is the number of trailing closes used for realized volatility.
	VolatilityWindow = 30
	// TradingDaysPerYear annualizes daily volatility.
	TradingDaysPerYear = 252
)

// Snapshot is a point-in-time market read. It is built fresh per request and never cached.
type Snapshot struct {
	Symbol     string
	LastClose  decimal.Decimal
	SMA        decimal.Decimal
	Volatility decimal.Decimal // annualized, percent
	// RiskFreeRate is percent; invalid when no rate source is configured.
	RiskFreeRate decimal.NullDecimal
	AsOf         time.Time
}

// Provider fetches a snapshot. Failures are domain.ErrorTypeDataUnavailable errors.
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Snapshot, error)

func (f ProviderFunc) Snapshot(ctx context.Context) (Snapshot, error) { return f(ctx) }

// StaticProvider always returns the same snapshot. Used for offline runs.
type StaticProvider struct {
	Value Snapshot
}

// NewStaticProvider returns a provider serving a fixed uptrend snapshot.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{Value: Snapshot{
		Symbol:       "^GSPC",
		LastClose:    decimal.RequireFromString("450.00"),
		SMA:          decimal.RequireFromString("440.00"),
		Volatility:   decimal.RequireFromString("10.00"),
		RiskFreeRate: decimal.NewNullDecimal(decimal.RequireFromString("5.00")),
	}}
}

func (p *StaticProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s := p.Value
	s.AsOf = time.Now().UTC()
	return s, nil
}
