package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/internal/server"
	"github.com/telepair/webcheck/internal/writer/postgres"
	"github.com/telepair/webcheck/pkg/logger"
)

// withPostgres opens the configured database without touching the table and
// hands the writer to fn.
func withPostgres(cmd *cobra.Command, g *globalFlags, password string, fn func(context.Context, *postgres.Writer) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer log.Close()

	pg := cfg.Postgres
	pg.CreateTable = false
	w, err := server.OpenPostgres(cmd.Context(), pg, passwordSource(cmd, password), log.Logger)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(cmd.Context(), w)
}

func newPGServiceCommand(g *globalFlags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "pg-service",
		Short: "Check that PostgreSQL is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPostgres(cmd, g, password, func(ctx context.Context, w *postgres.Writer) error {
				v, err := w.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "PostgreSQL password")
	return cmd
}

func newPGTableCreateCommand(g *globalFlags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "pg-table-create",
		Short: "Create the results table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPostgres(cmd, g, password, func(ctx context.Context, w *postgres.Writer) error {
				if err := w.CreateTable(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Table %s ready\n", w.Table())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "PostgreSQL password")
	return cmd
}

func newPGTableDropCommand(g *globalFlags) *cobra.Command {
	var (
		password string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "pg-table-drop",
		Short: "Drop the results table and all stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: refusing to drop the table without --yes", pipeline.ErrConfig)
			}
			return withPostgres(cmd, g, password, func(ctx context.Context, w *postgres.Writer) error {
				if err := w.DropTable(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Table %s dropped\n", w.Table())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "PostgreSQL password")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the drop")
	return cmd
}
