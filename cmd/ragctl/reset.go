package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(opts *rootOpts) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop a user's entire collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !yes {
				return fmt.Errorf("refusing to drop collection for user %s without --yes", opts.userID)
			}
			if err := opts.buildService(ctx); err != nil {
				return err
			}
			defer opts.close()

			if err := opts.svc.Reset(ctx, opts.userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped collection for user %s\n", opts.userID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the drop")
	return cmd
}
