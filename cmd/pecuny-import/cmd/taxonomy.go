package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pecuny/internal/core"
)

func newTaxonomyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "List the sections and categories usable in an import",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sections, err := a.ledger.Taxonomy.ListSections(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SECTION\tCATEGORY\tSCOPE")
			for _, section := range sections {
				categories, err := a.ledger.Taxonomy.ListCategories(ctx, user, section.ID)
				if err != nil {
					return err
				}
				for _, c := range categories {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", section.Label, c.Label, scope(c))
				}
			}
			return tw.Flush()
		},
	}
}

func scope(c core.Category) string {
	if c.UserID == nil {
		return "global"
	}
	return "own"
}
