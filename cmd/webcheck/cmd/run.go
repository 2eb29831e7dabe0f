package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/server"
	"github.com/telepair/webcheck/pkg/logger"
)

type runFlags struct {
	password  string
	noConsole bool
	postgres  bool
}

func newProducerCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "producer",
		Short: "Check the configured sites and publish the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRole(cmd, g, server.RoleProducer, &runFlags{})
		},
	}
}

func newConsumerCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "consumer",
		Short: "Consume results and hand them to the writers",
		Long:  "Consume results from the topic as group \"webchecker\" until a stop message arrives or the process is signalled.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRole(cmd, g, server.RoleConsumer, f)
		},
	}
	writerFlags(cmd, f)
	return cmd
}

func newRoundTripCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "round-trip",
		Short: "Run producer and consumer in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRole(cmd, g, server.RoleRoundTrip, f)
		},
	}
	writerFlags(cmd, f)
	return cmd
}

func writerFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.password, "password", "", "PostgreSQL password (default $POSTGRESQL_PASSWORD or prompt)")
	cmd.Flags().BoolVar(&f.noConsole, "no-console", false, "Disable the console writer")
	cmd.Flags().BoolVar(&f.postgres, "postgres", false, "Enable the PostgreSQL writer")
}

func runRole(cmd *cobra.Command, g *globalFlags, role server.Role, f *runFlags) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if f.noConsole {
		cfg.Console = false
	}
	if f.postgres {
		cfg.Postgres.Enabled = true
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer log.Close()

	srv, err := server.New(cmd.Context(), cfg, server.Options{
		Role:     role,
		Logger:   log.Logger,
		Stdout:   cmd.OutOrStdout(),
		Password: passwordSource(cmd, f.password),
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", role, err)
	}
	return srv.Run(cmd.Context())
}
