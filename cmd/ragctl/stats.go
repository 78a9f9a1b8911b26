package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many documents a user has indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.buildService(ctx); err != nil {
				return err
			}
			defer opts.close()

			n, err := opts.svc.DocumentCount(ctx, opts.userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s: %d documents\n", opts.userID, n)
			return nil
		},
	}
}
