package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gpio-remote-core/internal/api"
	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/config"
)

const defaultTokenTTL = 24 * time.Hour

// newTokenCommand mints a bearer token for the control API. The subject
// becomes the source recorded in the command log.
func newTokenCommand(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			token, err := api.IssueToken(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, subject, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is for (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject") //nolint:errcheck // flag is defined above

	return cmd
}

// newValidateCommand checks the configuration and items file without
// connecting to anything.
func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and item bindings, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			items, err := gpio.LoadItems(cfg.GPIO.ItemsFile)
			if err != nil {
				return fmt.Errorf("loading items: %w", err)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ITEM\tENDPOINT\tMODE\tKEY")
			for _, b := range items.Bindings() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Item, b.Endpoint, b.Mode(), b.Key())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			registry := gpio.NewRegistry(items)
			fmt.Fprintf(out, "%d items on %d endpoints\n", registry.Len(), len(registry.Endpoints()))
			return nil
		},
	}
}
