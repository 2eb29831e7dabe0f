package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/bus"
	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/tlsutil"
)

func newStopCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask running consumers to stop",
		Long:  "Publish the stop message on the topic. The consumer that receives it drains its queue and exits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			tlsCfg, err := tlsutil.Load(cfg.Bus.TLS)
			if err != nil {
				return fmt.Errorf("%w: bus tls: %w", pipeline.ErrConfig, err)
			}
			log, err := logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to setup logger: %w", err)
			}
			defer log.Close()

			ep := pipeline.Endpoint{
				URI:   strings.Join(cfg.Bus.NATS.URLs, ","),
				Topic: cfg.Bus.Topic,
				TLS:   tlsCfg,
			}
			d := &bus.Dialer{Config: cfg.Bus.Config, Logger: log.Logger}
			if err := pipeline.SendSentinel(cmd.Context(), d, ep); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop message sent to %s\n", ep.Topic)
			return nil
		},
	}
}
