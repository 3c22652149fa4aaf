package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

func newKeygenCommand() *cobra.Command {
	var name string
	var expiresIn time.Duration
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ingestion API key and the config entry that accepts it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			cmd.SilenceUsage = true
			raw, err := apikey.GenerateKey()
			if err != nil {
				return err
			}
			entry := config.APIKey{Name: name, Hash: apikey.HashKey(raw)}
			if expiresIn > 0 {
				t := time.Now().UTC().Add(expiresIn).Truncate(time.Second)
				entry.ExpiresAt = &t
			}
			snippet, err := yaml.Marshal(map[string]any{
				"server": map[string]any{"ingestKeys": []config.APIKey{entry}},
			})
			if err != nil {
				return fmt.Errorf("encoding config entry: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Store this key securely, it cannot be recovered from the config.")
			fmt.Fprintf(out, "\n  Key: %s\n\n", raw)
			fmt.Fprintln(out, "Add to the config file:")
			_, err = fmt.Fprintf(out, "\n%s", snippet)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name recorded with the key")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "key lifetime, e.g. 720h (default never expires)")
	return cmd
}
