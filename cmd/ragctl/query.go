package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/rag"
)

func newQueryCmd(opts *rootOpts) *cobra.Command {
	var (
		topK        int
		filterPairs []string
		asJSON      bool
		asContext   bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search a user's collection by semantic similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.buildService(ctx); err != nil {
				return err
			}
			defer opts.close()

			filter, err := parseKeyValues(filterPairs)
			if err != nil {
				return err
			}

			queryText := strings.Join(args, " ")
			results, err := opts.svc.Query(ctx, opts.userID, queryText, topK, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				fmt.Fprintln(out, rag.FormatResultsJSON(queryText, results))
			case asContext:
				fmt.Fprint(out, rag.FormatContext(results))
			default:
				printResults(out, results)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", core.DefaultTopK, "maximum number of results")
	cmd.Flags().StringArrayVar(&filterPairs, "filter", nil, "metadata key=value filter (repeatable, all must match)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&asContext, "context", false, "print results as a prompt context block")
	return cmd
}

func printResults(out io.Writer, results []core.ScoredChunk) {
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [distance %.4f] doc=%s chunk=%d\n", i+1, r.Distance, r.Metadata.DocumentID, r.Metadata.ChunkIndex)
		fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(r.Text, "\n", "\n   "))
	}
}
