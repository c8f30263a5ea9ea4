// Package interaction is the interaction dispatcher: it classifies verified
// callbacks, produces the immediate protocol response and schedules the deferred
// work that ends in a follow-up message.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/tjfontaine/mfea-gateway/internal/decision"
	"github.com/tjfontaine/mfea-gateway/internal/domain"
	"github.com/tjfontaine/mfea-gateway/internal/followup"
	"github.com/tjfontaine/mfea-gateway/internal/market"
	"github.com/tjfontaine/mfea-gateway/internal/server"
	"github.com/tjfontaine/mfea-gateway/internal/worker"
)

// deliveryGrace is how long a follow-up may still be attempted after the task
// deadline has passed.
const deliveryGrace = 10 * time.Second

// Submitter schedules background tasks without blocking.
type Submitter interface {
	Submit(name string, fn worker.Task) error
}

// Config wires a Handler. All collaborators are read-only after construction.
type Config struct {
	Provider  market.Provider
	Followups followup.Deliverer
	Pool      Submitter
	Logger    *slog.Logger
	Meter     metric.Meter
}

// Handler is the interaction dispatcher. It holds no per-request state.
type Handler struct {
	provider  market.Provider
	followups followup.Deliverer
	pool      Submitter
	logger    *slog.Logger
	metrics   *Metrics
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Provider == nil {
		return nil, errors.New("interaction: market provider is required")
	}
	if cfg.Followups == nil {
		return nil, errors.New("interaction: follow-up deliverer is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("interaction: worker pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m, err := NewMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("interaction metrics: %w", err)
	}
	return &Handler{
		provider:  cfg.Provider,
		followups: cfg.Followups,
		pool:      cfg.Pool,
		logger:    cfg.Logger,
		metrics:   m,
	}, nil
}

// Dispatch maps a verified interaction to its immediate response and, for
// deferred commands, the background task. It performs no I/O.
func (h *Handler) Dispatch(in domain.Interaction) (domain.Response, worker.Task, error) {
	switch in.Kind {
	case domain.KindHandshake:
		return domain.Response{Type: domain.ResponseTypePong}, nil, nil

	case domain.KindCommand:
		deferred := domain.Response{Type: domain.ResponseTypeDeferredChannelMessageWithSource}
		switch in.Command {
		case domain.CommandPing:
			return deferred, h.pingTask(in), nil
		case domain.CommandCheck:
			return deferred, h.checkTask(in), nil
		case domain.CommandUnknown:
		}

	case domain.KindOther:
	}

	return domain.Response{}, nil, domain.ErrInvalidRequest("Unknown command").
		WithCode(domain.ErrorCodeUnknownCommand)
}

// ServeHTTP handles a request that SignatureMiddleware has already verified.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := server.RawBody(ctx)
	if body == nil {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			server.AddError(ctx, err)
			server.WriteError(w, domain.ErrInvalidRequest("unreadable request body").WithCause(err))
			return
		}
	}

	in, err := domain.DecodeInteraction(body)
	if err != nil {
		h.metrics.interaction(ctx, domain.KindOther.String(), "malformed")
		server.AddError(ctx, err)
		server.WriteError(w, err)
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	server.AddLogField(ctx, "interaction_id", in.ID)
	server.AddLogField(ctx, "interaction_kind", in.Kind.String())
	server.AddLogField(ctx, "command", in.CommandName)

	resp, task, err := h.Dispatch(in)
	if err != nil {
		h.metrics.interaction(ctx, in.Kind.String(), "rejected")
		server.AddError(ctx, err)
		server.WriteError(w, err)
		return
	}

	outcome := "answered"
	ack := make(chan struct{})
	defer close(ack)
	if task != nil {
		outcome = "deferred"
		if err := h.pool.Submit(in.Command.String()+":"+in.ID, afterAck(ack, task)); err != nil {
			reason := "saturated"
			if errors.Is(err, worker.ErrPoolClosed) {
				reason = "closed"
			}
			h.metrics.poolRejected(ctx, reason)
			server.AddError(ctx, domain.ErrOverloaded("background capacity exhausted").WithCause(err))
			h.logger.WarnContext(ctx, "background capacity exhausted, answering immediately",
				slog.String("interaction_id", in.ID),
				slog.String("command", in.CommandName),
				slog.String("reason", reason),
			)
			outcome = "busy"
			resp = BusyResponse()
		}
	}

	if err := server.WriteJSON(w, http.StatusOK, resp); err != nil {
		server.AddError(ctx, err)
	}
	_ = http.NewResponseController(w).Flush()

	h.metrics.interaction(ctx, in.Kind.String(), outcome)
}

// afterAck holds task until the immediate response has been written.
func afterAck(ack <-chan struct{}, task worker.Task) worker.Task {
	return func(ctx context.Context) error {
		select {
		case <-ack:
		case <-ctx.Done():
			return fmt.Errorf("waiting for acknowledgement: %w", ctx.Err())
		}
		return task(ctx)
	}
}

func (h *Handler) pingTask(in domain.Interaction) worker.Task {
	responder := followup.NewResponder(h.followups, in.Token)
	return func(ctx context.Context) error {
		return h.respond(ctx, in, responder, domain.Message{Content: PingReply})
	}
}

func (h *Handler) checkTask(in domain.Interaction) worker.Task {
	responder := followup.NewResponder(h.followups, in.Token)
	return func(ctx context.Context) error {
		start := time.Now()
		defer func() { h.metrics.task(ctx, in.Command.String(), time.Since(start)) }()

		return h.respond(ctx, in, responder, h.evaluate(ctx, in))
	}
}

// evaluate never fails: every error, panics included, becomes a message for the user.
func (h *Handler) evaluate(ctx context.Context, in domain.Interaction) (msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "market evaluation panicked",
				slog.String("interaction_id", in.ID),
				slog.Any("panic", r),
			)
			msg = FailureMessage(domain.ErrServer("evaluation panicked"))
		}
	}()

	snap, err := h.provider.Snapshot(ctx)
	if err != nil {
		level := slog.LevelError
		if domain.IsType(err, domain.ErrorTypeDataUnavailable) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "market snapshot unavailable",
			slog.String("interaction_id", in.ID),
			slog.Any("error", err),
		)
		return FailureMessage(err)
	}

	rec := decision.Decide(snap)
	h.logger.InfoContext(ctx, "market evaluated",
		slog.String("interaction_id", in.ID),
		slog.String("last_close", snap.LastClose.String()),
		slog.String("sma", snap.SMA.String()),
		slog.String("volatility", snap.Volatility.String()),
		slog.Bool("rate_present", snap.RiskFreeRate.Valid),
		slog.String("recommendation", string(rec)),
	)
	return CheckMessage(in.InvokerID, snap, rec)
}

// respond performs the single follow-up delivery for an interaction. Failures are
// logged and returned to the pool; they are never retried.
func (h *Handler) respond(ctx context.Context, in domain.Interaction, r *followup.Responder, msg domain.Message) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), deliveryGrace)
		defer cancel()
	}

	res, err := r.Send(ctx, msg)
	if err != nil {
		return err
	}
	h.metrics.followup(ctx, in.Command.String(), res.Status.String())

	attrs := []any{
		slog.String("interaction_id", in.ID),
		slog.String("command", in.CommandName),
		slog.String("result", res.Status.String()),
	}
	if res.Delivered() {
		h.logger.InfoContext(ctx, "follow-up delivered", attrs...)
		return nil
	}
	switch res.Status {
	case followup.StatusRejected:
		h.logger.ErrorContext(ctx, "follow-up rejected",
			append(attrs, slog.Int("status", res.StatusCode), slog.String("body", res.Body))...)
	default:
		h.logger.ErrorContext(ctx, "follow-up transport error", append(attrs, slog.Any("error", res.Cause))...)
	}
	return res.Err()
}
