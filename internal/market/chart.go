package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// DefaultChartURL is the Yahoo Finance v8 chart endpoint; the symbol is appended as a path segment.
const DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// chartResponse is the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol            string `json:"symbol"`
				RegularMarketTime int64  `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History is a daily close series, oldest first.
type History struct {
	Symbol string
	Closes []float64
	AsOf   time.Time
}

// ChartClient reads one year of daily closes for a symbol.
type ChartClient struct {
	*fetcher
	baseURL string
}

// NewChartClient creates a chart client. An empty baseURL selects DefaultChartURL.
func NewChartClient(baseURL string, opts ...Option) *ChartClient {
	if baseURL == "" {
		baseURL = DefaultChartURL
	}
	return &ChartClient{
		fetcher: newFetcher(opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// DailyCloses fetches one year of daily closes. Null closes (halted sessions) are skipped.
func (c *ChartClient) DailyCloses(ctx context.Context, symbol string) (History, error) {
	q := url.Values{}
	q.Set("range", "1y")
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return History{}, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return History{}, domain.ErrDataUnavailable("malformed chart response").WithCause(err)
	}
	if resp.Chart.Error != nil {
		return History{}, domain.ErrDataUnavailable(
			fmt.Sprintf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description),
		).WithCode(domain.ErrorCodeUpstreamStatus)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return History{}, domain.ErrDataUnavailable("chart response has no quotes").
			WithCode(domain.ErrorCodeInsufficientHistory)
	}

	result := resp.Chart.Result[0]
	raw := result.Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			closes = append(closes, *v)
		}
	}

	h := History{Symbol: symbol, Closes: closes}
	if result.Meta.Symbol != "" {
		h.Symbol = result.Meta.Symbol
	}
	if result.Meta.RegularMarketTime > 0 {
		h.AsOf = time.Unix(result.Meta.RegularMarketTime, 0).UTC()
	} else if n := len(result.Timestamp); n > 0 {
		h.AsOf = time.Unix(result.Timestamp[n-1], 0).UTC()
	}
	return h, nil
}
