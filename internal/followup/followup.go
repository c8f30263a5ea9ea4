// Package followup delivers deferred interaction messages through the platform's
// token-addressed webhook.
package followup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// DefaultAPIBase is the platform REST base URL.
const DefaultAPIBase = "https://discord.com/api/v10"

// maxRejectBody caps how much of a rejection body is kept for logging.
const maxRejectBody = 512

// ErrTokenConsumed is returned when a second delivery is attempted on a Responder.
var ErrTokenConsumed = errors.New("interaction token already consumed")

// Status is the outcome class of a delivery attempt.
type Status int

const (
	StatusDelivered Status = iota
	StatusRejected
	StatusTransportError
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRejected:
		return "rejected"
	default:
		return "transport_error"
	}
}

// DeliveryResult is the outcome of exactly one delivery attempt.
type DeliveryResult struct {
	Status     Status
	StatusCode int    // set when Status == StatusRejected
	Body       string // truncated rejection body
	Cause      error  // set when Status == StatusTransportError
}

// Delivered reports whether the platform accepted the message.
func (r DeliveryResult) Delivered() bool { return r.Status == StatusDelivered }

// Err converts a failed result to a delivery error, or nil when delivered.
func (r DeliveryResult) Err() error {
	switch r.Status {
	case StatusDelivered:
		return nil
	case StatusRejected:
		return domain.ErrDelivery(fmt.Sprintf("follow-up rejected with status %d", r.StatusCode)).
			WithCode(domain.ErrorCodeUpstreamStatus)
	default:
		return domain.ErrDelivery("follow-up transport failure").WithCause(r.Cause)
	}
}

// Deliverer posts a message to the follow-up webhook of an interaction token.
type Deliverer interface {
	Deliver(ctx context.Context, token string, msg domain.Message) DeliveryResult
}

// Config configures a Client.
type Config struct {
	APIBase       string
	ApplicationID string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client is the follow-up dispatcher. It makes exactly one attempt per call.
type Client struct {
	base   string
	appID  string
	client *http.Client
}

// NewClient creates a follow-up client.
func NewClient(cfg Config) *Client {
	base := cfg.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		base:   strings.TrimRight(base, "/"),
		appID:  cfg.ApplicationID,
		client: client,
	}
}

// URL returns the webhook URL for token. The URL is the credential; do not log it.
func (c *Client) URL(token string) string {
	return fmt.Sprintf("%s/webhooks/%s/%s", c.base, url.PathEscape(c.appID), url.PathEscape(token))
}

// Deliver performs one POST of msg. Any 2xx is delivered.
func (c *Client) Deliver(ctx context.Context, token string, msg domain.Message) DeliveryResult {
	body, err := json.Marshal(msg)
	if err != nil {
		return DeliveryResult{Status: StatusTransportError, Cause: fmt.Errorf("marshal message: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(token), bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{Status: StatusTransportError, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return DeliveryResult{Status: StatusTransportError, Cause: redact(err, token)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return DeliveryResult{Status: StatusDelivered, StatusCode: resp.StatusCode}
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectBody))
	return DeliveryResult{
		Status:     StatusRejected,
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
}

// redact strips the token from transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

// Responder is bound to a single interaction token and permits one delivery.
type Responder struct {
	d     Deliverer
	token string
	used  atomic.Bool
}

// NewResponder binds d to token.
func NewResponder(d Deliverer, token string) *Responder {
	return &Responder{d: d, token: token}
}

// Send delivers msg. Every call after the first returns ErrTokenConsumed without
// contacting the platform, whatever the first outcome was.
func (r *Responder) Send(ctx context.Context, msg domain.Message) (DeliveryResult, error) {
	if !r.used.CompareAndSwap(false, true) {
		return DeliveryResult{}, ErrTokenConsumed
	}
	return r.d.Deliver(ctx, r.token, msg), nil
}
