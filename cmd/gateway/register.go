package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/mfea-gateway/internal/commands"
	"github.com/tjfontaine/mfea-gateway/internal/config"
	"github.com/tjfontaine/mfea-gateway/internal/logging"
)

var registerGuild string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the slash-command catalog with the platform",
	Long: "Bulk-overwrites the application's commands with the catalog this gateway serves. " +
		"Commands are registered globally unless a guild id is configured or passed with --guild.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if registerGuild != "" {
			cfg.Discord.GuildID = registerGuild
		}

		logger, err := logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return register(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerGuild, "guild", "", "register to this guild only (overrides discord.guild_id)")
	rootCmd.AddCommand(registerCmd)
}

func register(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if err := cfg.ValidateRegistration(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	registrar, err := commands.NewRegistrar(commands.RegistrarConfig{
		APIBase:       cfg.Discord.APIBase,
		ApplicationID: cfg.Discord.ApplicationID,
		BotToken:      cfg.Discord.BotToken,
		GuildID:       cfg.Discord.GuildID,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	registered, err := registrar.Register(ctx, commands.Catalog())
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	scope := "globally"
	if cfg.Discord.GuildID != "" {
		scope = "in guild " + cfg.Discord.GuildID
	}
	fmt.Fprintf(out, "Registered %d commands %s:\n", len(registered), scope)
	for _, c := range registered {
		fmt.Fprintf(out, "  /%s (id %s)\n", c.Name, c.ID)
	}
	return nil
}
