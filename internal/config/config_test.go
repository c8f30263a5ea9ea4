package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29"

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(missingPath(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 10*time.Second {
			t.Errorf("request_timeout = %v, want 10s", cfg.Server.RequestTimeout)
		}
		if cfg.Worker.TaskTimeout != 10*time.Minute {
			t.Errorf("task_timeout = %v, want 10m", cfg.Worker.TaskTimeout)
		}
		if cfg.Worker.Workers != 4 || cfg.Worker.Queue != 64 {
			t.Errorf("worker = %+v, want 4 workers / 64 queue", cfg.Worker)
		}
		if cfg.Market.Symbol != "^GSPC" {
			t.Errorf("symbol = %q, want ^GSPC", cfg.Market.Symbol)
		}
		if cfg.Discord.APIBase != "https://discord.com/api/v10" {
			t.Errorf("api_base = %q", cfg.Discord.APIBase)
		}
		if cfg.Logging.Format != "json" {
			t.Errorf("logging.format = %q, want json", cfg.Logging.Format)
		}
	})

	t.Run("env var override", func(t *testing.T) {
		t.Setenv("MFEA_SERVER__PORT", "9000")
		t.Setenv("MFEA_WORKER__TASK_TIMEOUT", "90s")
		t.Setenv("MFEA_MARKET__REQUESTS_PER_SECOND", "0.5")
		t.Setenv("MFEA_MARKET__USER_AGENT", "mfea-test/2.0")

		cfg, err := Load(missingPath(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Worker.TaskTimeout != 90*time.Second {
			t.Errorf("task_timeout = %v, want 90s", cfg.Worker.TaskTimeout)
		}
		if cfg.Market.RequestsPerSecond != 0.5 {
			t.Errorf("requests_per_second = %v, want 0.5", cfg.Market.RequestsPerSecond)
		}
		if cfg.Market.UserAgent != "mfea-test/2.0" {
			t.Errorf("user_agent = %q, want mfea-test/2.0", cfg.Market.UserAgent)
		}
	})

	t.Run("legacy names", func(t *testing.T) {
		t.Setenv("DISCORD_PUBLIC_KEY", testKey)
		t.Setenv("DISCORD_APPLICATION_ID", "1234")
		t.Setenv("DISCORD_BOT_TOKEN", "bot")
		t.Setenv("PORT", "5000")

		cfg, err := Load(missingPath(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Discord.PublicKey != testKey || cfg.Discord.ApplicationID != "1234" || cfg.Discord.BotToken != "bot" {
			t.Errorf("discord = %+v", cfg.Discord)
		}
		if cfg.Server.Port != 5000 {
			t.Errorf("port = %v, want 5000", cfg.Server.Port)
		}
	})

	t.Run("prefixed beats legacy", func(t *testing.T) {
		t.Setenv("PORT", "5000")
		t.Setenv("MFEA_SERVER__PORT", "7000")

		cfg, err := Load(missingPath(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 7000 {
			t.Errorf("port = %v, want 7000", cfg.Server.Port)
		}
	})

	t.Run("empty rate url disables rate", func(t *testing.T) {
		t.Setenv("MFEA_MARKET__RATE_URL", "")

		cfg, err := Load(missingPath(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Market.RateURL != "" {
			t.Errorf("rate_url = %q, want empty", cfg.Market.RateURL)
		}
	})

	t.Run("file with substitution", func(t *testing.T) {
		t.Setenv("TEST_BOT_TOKEN", "from-env")
		path := writeConfig(t, `
server:
  port: 8181
discord:
  public_key: `+testKey+`
  application_id: "42"
  bot_token: ${TEST_BOT_TOKEN}
  guild_id: "777"
market:
  source: static
logging:
  format: text
  level: debug
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 8181 {
			t.Errorf("port = %v, want 8181", cfg.Server.Port)
		}
		if cfg.Discord.BotToken != "from-env" {
			t.Errorf("bot_token = %q, want from-env", cfg.Discord.BotToken)
		}
		if cfg.Discord.GuildID != "777" || cfg.Market.Source != "static" || cfg.Logging.Level != "debug" {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeConfig(t, "server: [unclosed")
		if _, err := Load(path); err == nil {
			t.Error("Load() expected error for malformed yaml")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(filepath.Join(os.TempDir(), "mfea-does-not-exist.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		cfg.Discord.PublicKey = testKey
		cfg.Discord.ApplicationID = "42"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing public key", func(c *Config) { c.Discord.PublicKey = "" }, "discord.public_key is required"},
		{"malformed public key", func(c *Config) { c.Discord.PublicKey = "abc" }, "discord.public_key"},
		{"missing application id", func(c *Config) { c.Discord.ApplicationID = "" }, "discord.application_id is required"},
		{"no workers", func(c *Config) { c.Worker.Workers = 0 }, "worker.workers"},
		{"bad source", func(c *Config) { c.Market.Source = "bloomberg" }, "market.source"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	cfg := &Config{Discord: DiscordConfig{ApplicationID: "42"}}
	if err := cfg.ValidateRegistration(); err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Errorf("ValidateRegistration() error = %v, want bot_token error", err)
	}

	cfg.Discord.BotToken = "tok"
	if err := cfg.ValidateRegistration(); err != nil {
		t.Errorf("ValidateRegistration() error = %v", err)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_VAR_MFEA}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
