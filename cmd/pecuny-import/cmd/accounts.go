package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pecuny/internal/core"
)

func newAccountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the user's accounts and balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.currentUser()
			if err != nil {
				return err
			}
			accounts, err := a.ledger.Accounts.ListAccounts(cmd.Context(), user)
			if err != nil {
				return err
			}
			total, err := a.ledger.Accounts.TotalBalance(cmd.Context(), user)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "ID\tLABEL\tBALANCE\t")
			for _, acc := range accounts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t\n", acc.ID, acc.Label, core.FormatAmount(acc.Balance))
			}
			fmt.Fprintf(tw, "\tTotal\t%s\t\n", core.FormatAmount(total))
			return tw.Flush()
		},
	}
}
