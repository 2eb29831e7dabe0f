package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/config"
	"github.com/telepair/webcheck/internal/pipeline"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	natsURL    string
}

func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "webcheck",
		Short:         "Website availability checks over NATS",
		Long:          "Periodically check websites, stream the results through NATS JetStream and persist them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", config.DefaultPath, "Configuration file path")
	cmd.PersistentFlags().StringVarP(&g.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&g.natsURL, "nats-url", "n", "", "NATS server URL, overrides bus.nats.urls")

	cmd.AddCommand(
		newProducerCommand(g),
		newConsumerCommand(g),
		newRoundTripCommand(g),
		newURLCheckCommand(),
		newStopCommand(g),
		newStatusCommand(g),
		newPGServiceCommand(g),
		newPGTableCreateCommand(g),
		newPGTableDropCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)
	return cmd
}

// load reads the configuration file and applies the global overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		if err := cfg.Logger.OverrideLevel(g.logLevel); err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
		}
	}
	if g.natsURL != "" {
		cfg.Bus.NATS.URLs = []string{g.natsURL}
		cfg.Server.EnableEmbedNATS = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func passwordSource(cmd *cobra.Command, flag string) config.PasswordSource {
	return config.PasswordSource{
		Flag:   flag,
		Getenv: os.Getenv,
		Prompt: config.TerminalPrompt(os.Stdin, cmd.ErrOrStderr()),
	}
}
