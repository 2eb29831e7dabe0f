package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/internal/status"
	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/natsx/client"
	"github.com/telepair/webcheck/pkg/tlsutil"
)

func newStatusCommand(g *globalFlags) *cobra.Command {
	var (
		format string
		prune  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List running instances",
		Long:  "Read the heartbeat bucket and print one line per producer or consumer instance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("%w: unsupported format: %s", pipeline.ErrConfig, format)
			}
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

			natsCfg := cfg.Bus.NATS
			natsCfg.Name = client.DefaultName + "-status"
			natsCfg.TLS = tlsCfg
			c, err := client.NewClient(natsCfg, log.Logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx := cmd.Context()
			bucket, err := c.Bucket(ctx, cfg.Status.BucketConfig(cfg.Bus.Stream.Storage))
			if err != nil {
				return fmt.Errorf("status bucket: %w", err)
			}
			list, err := status.List(ctx, bucket)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if prune {
				n, err := status.Prune(ctx, bucket, list)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d stopped instances\n", n)
				return nil
			}
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No instances reported")
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(out, "%s  %s  %s  host=%s  updated=%s\n",
					s.Key(), s.State, s.Version, s.Host.Hostname, s.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete the entries of stopped instances")

	return cmd
}
