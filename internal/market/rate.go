package market

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

const (
	// DefaultRateURL is the 3-month treasury quote page.
	DefaultRateURL = "https://www.cnbc.com/quotes/US3M"
	// RateSelector locates the last price on the quote page.
	RateSelector = "span.QuoteStrip-lastPrice"
)

// RateScraper reads the risk-free rate from a quote page.
type RateScraper struct {
	*fetcher
	url string
}

// NewRateScraper creates a scraper for the given quote page.
func NewRateScraper(pageURL string, opts ...Option) *RateScraper {
	return &RateScraper{fetcher: newFetcher(opts...), url: pageURL}
}

// Rate returns the quoted rate in percent, rounded to 2 decimal places.
func (s *RateScraper) Rate(ctx context.Context) (decimal.Decimal, error) {
	body, err := s.get(ctx, s.url, "text/html")
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ParseRatePage(body)
}

// ParseRatePage extracts the percent figure from a quote page. A missing element
// or text without a trailing "%" is a malformed page.
func ParseRatePage(page []byte) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return decimal.Decimal{}, malformedRatePage("parse html", err)
	}

	sel := doc.Find(RateSelector).First()
	if sel.Length() == 0 {
		return decimal.Decimal{}, malformedRatePage("rate element not found", nil)
	}

	text := strings.TrimSpace(sel.Text())
	num, ok := strings.CutSuffix(text, "%")
	if !ok {
		return decimal.Decimal{}, malformedRatePage("rate text is not a percentage: "+text, nil)
	}

	v, err := decimal.NewFromString(strings.TrimSpace(num))
	if err != nil {
		return decimal.Decimal{}, malformedRatePage("rate text is not numeric: "+text, err)
	}
	return v.Round(2), nil
}

func malformedRatePage(msg string, cause error) error {
	e := domain.ErrDataUnavailable("malformed rate page: " + msg).WithCode(domain.ErrorCodeMalformedRatePage)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
