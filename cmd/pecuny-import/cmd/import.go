package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pecuny/internal/amqp"
	"pecuny/internal/cli"
	"pecuny/internal/metrics"
	"pecuny/internal/services"
)

// errRowsFailed makes the process exit non-zero when some rows were rejected.
var errRowsFailed = errors.New("some rows were not imported")

func newImportCmd(a *app) *cobra.Command {
	var (
		accountID int64
		file      string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV file into an account",
		Long: `Import books every row of the file as a transaction on the account.
Rows that cannot be booked are listed with their line and reason; the others
are kept. When AMQP_URL is set the report is also published for the
report-worker.

Example:
  pecuny-import import --user 0b7e... --account 3 --file march.csv
  cat march.csv | pecuny-import import --user 0b7e... --account 3 --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.currentUser()
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer closeIn()

			var publisher services.ReportPublisher
			if a.cfg != nil {
				client, err := cli.ConnectReportSink(a.cfg, metrics.NoOp{}, a.logger)
				if err != nil {
					// The import itself does not depend on the broker.
					a.logger.Warn("Report sink unavailable, continuing without it", "error", err)
				} else if client != nil {
					defer client.Close()
					publisher = client
				}
			}

			result, err := a.ledger.Importer(publisher).Import(cmd.Context(), user, accountID, in)
			if err != nil {
				return fmt.Errorf("import %s: %w", file, err)
			}

			printResult(cmd.OutOrStdout(), result)
			if strict && result.Succeeded < result.Total {
				return errRowsFailed
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "id of the account to book into")
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import, - for stdin")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any row fails")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func openInput(cmd *cobra.Command, file string) (io.Reader, func(), error) {
	if file == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func printResult(w io.Writer, result services.ImportResult) {
	fmt.Fprintf(w, "Imported %d of %d rows into account %d\n", result.Succeeded, result.Total, result.AccountID)

	failures := result.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tLINE\tREASON")
	for _, f := range failures {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", f.Row, f.Line, f.Reason)
	}
	_ = tw.Flush()
}

var _ services.ReportPublisher = (*amqp.Client)(nil)
