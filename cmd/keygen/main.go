package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/mfea-gateway/internal/auth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var keyHex, body, ts string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 keypair or sign a request body",
		Long: "Without --key, prints a fresh keypair for discord.public_key. With --key, prints " +
			"the signature headers for --body so requests can be sent to a local gateway.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), keyHex, body, ts)
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "hex private key (seed or full key) to sign with instead of generating")
	cmd.Flags().StringVar(&body, "body", "", "request body to sign")
	cmd.Flags().StringVar(&ts, "timestamp", "", "signature timestamp (default: now, unix seconds)")
	return cmd
}

func run(out io.Writer, keyHex, body, ts string) error {
	if keyHex == "" {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Public key:  %s\n", hex.EncodeToString(pub))
		fmt.Fprintf(out, "Private key: %s\n", hex.EncodeToString(priv.Seed()))
		fmt.Fprintln(out, "\nAdd this to your config.yaml:")
		fmt.Fprintf(out, "  discord:\n    public_key: \"%s\"\n", hex.EncodeToString(pub))
		if body == "" {
			return nil
		}
		return sign(out, priv, body, ts)
	}

	priv, err := parsePrivateKey(keyHex)
	if err != nil {
		return err
	}
	return sign(out, priv, body, ts)
}

func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("key must be 32 or 64 bytes of hex")
	}
}

func sign(out io.Writer, priv ed25519.PrivateKey, body, ts string) error {
	if ts == "" {
		ts = strconv.FormatInt(time.Now().Unix(), 10)
	}
	sig := auth.Sign(priv, []byte(body), ts)
	fmt.Fprintf(out, "%s: %s\n", auth.HeaderTimestamp, ts)
	fmt.Fprintf(out, "%s: %s\n", auth.HeaderSignature, sig)
	return nil
}
