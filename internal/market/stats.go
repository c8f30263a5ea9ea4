package market

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// Figures are the price-derived parts of a snapshot.
type Figures struct {
	LastClose  decimal.Decimal
	SMA        decimal.Decimal
	Volatility decimal.Decimal
}

// ComputeFigures derives last close, SMA and annualized volatility from daily closes,
// oldest first. All three are rounded to 2 decimal places.
func ComputeFigures(closes []float64) (Figures, error) {
	if len(closes) < SMAWindow {
		return Figures{}, domain.ErrDataUnavailable(
			fmt.Sprintf("insufficient history: need %d closes, got %d", SMAWindow, len(closes)),
		).WithCode(domain.ErrorCodeInsufficientHistory)
	}

	vol, err := annualizedVolatility(closes[len(closes)-VolatilityWindow:])
	if err != nil {
		return Figures{}, err
	}

	return Figures{
		LastClose:  decimal.NewFromFloat(closes[len(closes)-1]).Round(2),
		SMA:        decimal.NewFromFloat(mean(closes[len(closes)-SMAWindow:])).Round(2),
		Volatility: decimal.NewFromFloat(vol).Round(2),
	}, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// annualizedVolatility is the sample standard deviation of daily percentage
// changes, scaled by sqrt(252) and expressed in percent.
func annualizedVolatility(closes []float64) (float64, error) {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return 0, domain.ErrDataUnavailable("zero close in volatility window").
				WithCode(domain.ErrorCodeInsufficientHistory)
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0, nil
	}

	m := mean(returns)
	ss := 0.0
	for _, r := range returns {
		ss += (r - m) * (r - m)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	return std * math.Sqrt(TradingDaysPerYear) * 100, nil
}
