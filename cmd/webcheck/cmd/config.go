package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/config"
)

func newConfigCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage webcheck configuration files",
	}

	cmd.AddCommand(newConfigShowCommand(g))
	cmd.AddCommand(newConfigValidateCommand(g))
	cmd.AddCommand(newConfigInitCommand(g))

	return cmd
}

func newConfigShowCommand(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration with all resolved values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				data, err := cfg.Marshal()
				if err != nil {
					return fmt.Errorf("failed to marshal config to YAML: %w", err)
				}
				fmt.Fprintf(out, "# Configuration from: %s\n", g.configFile)
				fmt.Fprint(out, string(data))
			case "summary":
				sites := make([]string, 0, len(cfg.Sites))
				for _, s := range cfg.Sites {
					sites = append(sites, s.URL)
				}
				fmt.Fprintf(out, "Configuration file: %s\n", g.configFile)
				fmt.Fprintf(out, "Sites: %s\n", strings.Join(sites, ", "))
				fmt.Fprintf(out, "Topic: %s\n", cfg.Bus.Topic)
				fmt.Fprintf(out, "NATS URLs: %v\n", cfg.Bus.NATS.URLs)
				fmt.Fprintf(out, "Embedded NATS: %t\n", cfg.Server.EnableEmbedNATS)
				fmt.Fprintf(out, "Interval: %s\n", cfg.Pipeline.Interval)
				fmt.Fprintf(out, "Writers: console=%t postgres=%t\n", cfg.Console, cfg.Postgres.Enabled)
				fmt.Fprintf(out, "Console Log Level: %s\n", cfg.Logger.Console.Level)
				fmt.Fprintf(out, "Health Check Address: %s\n", cfg.Health.Addr)
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, summary)")

	return cmd
}

func newConfigValidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long:  "Check if the configuration file is valid and properly formatted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := g.load(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s is valid\n", g.configFile)
			return nil
		},
	}
}

func newConfigInitCommand(g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a new configuration file with default values and one example site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ExampleConfig().Save(g.configFile, force)
			if err != nil {
				return fmt.Errorf("failed to write configuration (use --force to overwrite): %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}
