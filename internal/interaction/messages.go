package interaction

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/mfea-gateway/internal/decision"
	"github.com/tjfontaine/mfea-gateway/internal/domain"
	"github.com/tjfontaine/mfea-gateway/internal/market"
)

const (
	EmbedTitle = "Market Financial Evaluation Assistant (MFEA)"
	EmbedColor = 5814783

	PingReply = "The bot is awake and ready!"
	BusyReply = "The gateway is busy right now, please try again in a moment."

	genericFailure = "An error occurred while evaluating the market. Please try again later."
)

// CheckMessage renders a snapshot and its recommendation as a follow-up embed.
func CheckMessage(invokerID string, s market.Snapshot, rec decision.Recommendation) domain.Message {
	desc := "Here is the latest market data:"
	if m := domain.Mention(invokerID); m != "" {
		desc = m + ", here is the latest market data:"
	}

	rate := "n/a"
	if s.RiskFreeRate.Valid {
		rate = s.RiskFreeRate.Decimal.StringFixed(2) + "%"
	}

	return domain.Message{
		Embeds: []domain.Embed{{
			Title:       EmbedTitle,
			Description: desc,
			Fields: []domain.EmbedField{
				{Name: "SPX Last Close", Value: s.LastClose.StringFixed(2), Inline: true},
				{Name: fmt.Sprintf("SMA %d", market.SMAWindow), Value: s.SMA.StringFixed(2), Inline: true},
				{Name: "Volatility (Annualized)", Value: s.Volatility.StringFixed(2) + "%", Inline: true},
				{Name: "3M Treasury Rate", Value: rate, Inline: true},
				{Name: "Recommendation", Value: string(rec)},
			},
			Color: EmbedColor,
		}},
	}
}

// FailureMessage turns a background failure into user-facing text. Data errors
// carry their reason; anything else is reported generically.
func FailureMessage(err error) domain.Message {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Type == domain.ErrorTypeDataUnavailable {
		return domain.Message{Content: "Market data is unavailable right now: " + apiErr.Message}
	}
	return domain.Message{Content: genericFailure}
}

// BusyResponse answers a command immediately when no background capacity is left.
func BusyResponse() domain.Response {
	return domain.Response{
		Type: domain.ResponseTypeChannelMessageWithSource,
		Data: &domain.Message{Content: BusyReply, Flags: domain.MessageFlagEphemeral},
	}
}
