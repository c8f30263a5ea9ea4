// Package commands describes the slash commands the gateway serves and registers
// them with the platform.
package commands

import "github.com/tjfontaine/mfea-gateway/internal/domain"

// ChatInput is the application command type for slash commands.
const ChatInput = 1

// ApplicationCommand is the registration payload for one slash command.
type ApplicationCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"type"`
}

// RegisteredCommand is the platform's view of a registered command.
type RegisteredCommand struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
}

// Catalog returns the commands the dispatcher understands.
func Catalog() []ApplicationCommand {
	return []ApplicationCommand{
		{
			Name:        domain.CommandPing.String(),
			Description: "Check that the bot is awake.",
			Type:        ChatInput,
		},
		{
			Name:        domain.CommandCheck.String(),
			Description: "Evaluate the S&P 500 trend, volatility and rates and get a positioning recommendation.",
			Type:        ChatInput,
		},
	}
}
