package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOpts) *cobra.Command {
	var (
		documentID string
		metaPairs  []string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Split, embed and index a document for a user",
		Long: `Reads the document from the given file, or from stdin when no file
is given, and indexes it under --doc. Re-ingesting the same --doc
replaces the previous version. Without --doc a fresh document ID is
minted and printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.buildService(ctx); err != nil {
				return err
			}
			defer opts.close()

			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			if documentID == "" {
				documentID = uuid.NewString()
			}

			meta, err := parseKeyValues(metaPairs)
			if err != nil {
				return err
			}
			var extra map[string]interface{}
			if len(meta) > 0 {
				extra = make(map[string]interface{}, len(meta))
				for k, v := range meta {
					extra[k] = v
				}
			}

			n, err := opts.svc.Ingest(ctx, opts.userID, documentID, string(data), extra)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed document %s: %d chunks\n", documentID, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&documentID, "doc", "d", "", "document ID (minted when omitted)")
	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "metadata key=value attached to every chunk (repeatable)")
	return cmd
}
