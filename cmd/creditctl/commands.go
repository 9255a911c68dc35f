package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/app"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/observability"
	"github.com/rajarshidattapy/R-Credit/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	var policyFile string
	root := &cobra.Command{
		Use:           "creditctl",
		Short:         "Operator tooling for the R-Credit ledger",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&policyFile, "policy", "", "credit policy YAML (defaults to CREDIT_POLICY_FILE)")

	loadConfig := func() config.Config {
		cfg := config.Load()
		if policyFile != "" {
			cfg.CreditPolicyFile = policyFile
		}
		return cfg
	}

	root.AddCommand(
		newMigrateCmd(loadConfig),
		newSweepCmd(loadConfig),
		newReplayCmd(loadConfig),
		newPolicyCmd(loadConfig),
	)
	return root
}

type configLoader func() config.Config

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := load()
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.NewPostgresPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

func newSweepCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Default every overdue loan once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newReplayCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <identity-id>",
		Short: "Recompute an identity's score from its event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Ledger.Replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Drift {
				return fmt.Errorf("score drift for %s: stored %d, replayed %d", report.IdentityID, report.StoredRaw, report.ReplayedRaw)
			}
			return nil
		},
	}
}

func newPolicyCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Validate and print the effective credit policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := load()
			policy, err := config.LoadPolicy(cfg.CreditPolicyFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(policy); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func openApp(ctx context.Context, load configLoader) (*app.App, error) {
	cfg := load()
	if cfg.StoreDriver == "memory" {
		return nil, fmt.Errorf("creditctl needs STORE_DRIVER=postgres; the memory store only lives inside the api process")
	}
	policy, err := config.LoadPolicy(cfg.CreditPolicyFile)
	if err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	repos, err := app.OpenRepositories(openCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)
	a, err := app.New(cfg, policy, repos, logger, app.Options{})
	if err != nil {
		repos.Close()
		return nil, err
	}
	return a, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
