package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *rootOpts) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove every chunk of a document from a user's collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if documentID == "" {
				return fmt.Errorf("--doc is required")
			}
			if err := opts.buildService(ctx); err != nil {
				return err
			}
			defer opts.close()

			if err := opts.svc.Delete(ctx, opts.userID, documentID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %s\n", documentID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&documentID, "doc", "d", "", "document ID to delete")
	return cmd
}
