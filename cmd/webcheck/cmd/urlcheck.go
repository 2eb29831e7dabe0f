package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telepair/webcheck/internal/collector/page"
	"github.com/telepair/webcheck/internal/pipeline"
)

func newURLCheckCommand() *cobra.Command {
	var (
		regex   string
		timeout time.Duration
		params  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "url-check URL",
		Short: "Check one URL once and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := page.New(page.Config{URL: args[0], Regex: regex, Timeout: timeout, QueryParams: params})
			if err != nil {
				return fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
			}
			rec, err := c.Collect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&regex, "regex", "", "Pattern the response body is matched against")
	cmd.Flags().DurationVar(&timeout, "timeout", page.DefaultTimeout, "End-to-end request timeout")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Query parameter key=value, repeatable")
	return cmd
}
