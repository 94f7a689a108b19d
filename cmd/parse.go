package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Print the work items parsed from the input without searching",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := loadItems(opts.cfg, opts.logger)
			if err != nil {
				return withCode(ExitSetup, err)
			}
			return printItems(cmd.OutOrStdout(), items)
		},
	}
}

func printItems(out io.Writer, items []scraper.WorkItem) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ROW\tOWNER\tSEARCH TERM\tFIRST\tMIDDLE\tLAST")
	for _, item := range items {
		if len(item.Identities) == 0 {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t-\t\t\t\n", item.Index, item.Raw)
			continue
		}
		for i, id := range item.Identities {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.Label(i), item.Raw, id.SearchTerm, id.FirstName, id.MiddleName, id.LastName)
		}
	}
	_, _ = fmt.Fprintf(tw, "\n%d items\t%d identities\n", len(items), countIdentities(items))
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

func countIdentities(items []scraper.WorkItem) int {
	n := 0
	for _, item := range items {
		n += len(item.Identities)
	}
	return n
}

