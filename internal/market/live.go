package market

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// LiveProvider combines the chart client and rate scraper into a Provider.
type LiveProvider struct {
	symbol string
	chart  *ChartClient
	rate   *RateScraper // nil: the snapshot carries no rate
	logger *slog.Logger
}

// NewLiveProvider creates a provider for symbol. A nil rate scraper yields snapshots
// without a risk-free rate.
func NewLiveProvider(symbol string, chart *ChartClient, rate *RateScraper, logger *slog.Logger) *LiveProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveProvider{symbol: symbol, chart: chart, rate: rate, logger: logger}
}

// Snapshot fetches closes and the rate concurrently. Either failure fails the snapshot.
func (p *LiveProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		hist History
		rfr  decimal.NullDecimal
	)

	g := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	g.Go(func(ctx context.Context) error {
		h, err := p.chart.DailyCloses(ctx, p.symbol)
		if err != nil {
			return err
		}
		hist = h
		return nil
	})
	if p.rate != nil {
		g.Go(func(ctx context.Context) error {
			r, err := p.rate.Rate(ctx)
			if err != nil {
				return err
			}
			rfr = decimal.NewNullDecimal(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.WarnContext(ctx, "market snapshot failed", slog.String("symbol", p.symbol), slog.Any("error", err))
		return Snapshot{}, err
	}

	fig, err := ComputeFigures(hist.Closes)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Symbol:       hist.Symbol,
		LastClose:    fig.LastClose,
		SMA:          fig.SMA,
		Volatility:   fig.Volatility,
		RiskFreeRate: rfr,
		AsOf:         hist.AsOf,
	}, nil
}
