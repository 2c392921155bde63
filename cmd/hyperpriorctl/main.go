package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hyperprior/internal/storage"
	"hyperprior/pkg/hyperprior"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	store   string
	dbPath  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "hyperpriorctl",
		Short:         "Batched hierarchical-prior training sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.store, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "hyperprior.db", "sqlite database path")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newTrainCmd(flags))
	cmd.AddCommand(newEvidenceCmd(flags))
	cmd.AddCommand(newPosteriorCmd(flags))
	cmd.AddCommand(newSessionsCmd(flags))
	return cmd
}

func newClient(ctx context.Context, flags *rootFlags) (*hyperprior.Client, error) {
	log := zap.NewNop()
	if flags.verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}
	return hyperprior.New(ctx, hyperprior.Options{
		StoreKind: flags.store,
		DBPath:    flags.dbPath,
		Logger:    log,
	})
}

func newTrainCmd(flags *rootFlags) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a session from a run config and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(configPath)
			if err != nil {
				return err
			}
			datasets, err := loadDatasets(cfg)
			if err != nil {
				return err
			}

			client, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer client.Close()

			handle, err := client.NewSession(cfg.sessionRequest())
			if err != nil {
				return err
			}
			deltas, err := handle.TrainAll(cmd.Context(), datasets, cfg.Passes, cfg.Iterations)
			if err != nil {
				return err
			}
			total, err := handle.Evidence(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.SaveSession(cmd.Context(), handle); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d batches, %d passes\n", handle.RunID(), len(datasets), len(deltas))
			for i, d := range deltas {
				fmt.Fprintf(out, "  pass %d: max shared-state delta %.6g\n", i+1, d)
			}
			fmt.Fprintf(out, "corrected log evidence: %.9f\n", total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run config YAML path")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newEvidenceCmd(flags *rootFlags) *cobra.Command {
	var configPath, runID string
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Recompute the corrected log evidence of a saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, client, err := resumeFromConfig(cmd.Context(), flags, configPath, runID)
			if err != nil {
				return err
			}
			defer client.Close()

			total, err := handle.Evidence(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "corrected log evidence: %.9f\n", total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run config YAML path")
	cmd.Flags().StringVar(&runID, "run-id", "", "session run ID (defaults to the config's run_id)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newPosteriorCmd(flags *rootFlags) *cobra.Command {
	var configPath, runID string
	cmd := &cobra.Command{
		Use:   "posterior",
		Short: "Report the shared posterior moments of a saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, client, err := resumeFromConfig(cmd.Context(), flags, configPath, runID)
			if err != nil {
				return err
			}
			defer client.Close()

			moments, err := handle.Posterior()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range moments {
				fmt.Fprintf(out, "feature %d: mean %.6f variance %.6f\n", m.Feature, m.Mean, m.Variance)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run config YAML path")
	cmd.Flags().StringVar(&runID, "run-id", "", "session run ID (defaults to the config's run_id)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newSessionsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer client.Close()

			ids, err := client.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func resumeFromConfig(ctx context.Context, flags *rootFlags, configPath, runID string) (*hyperprior.Handle, *hyperprior.Client, error) {
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if runID == "" {
		runID = cfg.RunID
	}
	if runID == "" {
		return nil, nil, fmt.Errorf("a run ID is required, via --run-id or the config's run_id")
	}

	client, err := newClient(ctx, flags)
	if err != nil {
		return nil, nil, err
	}
	handle, err := client.ResumeSession(ctx, runID, cfg.sessionRequest())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return handle, client, nil
}
