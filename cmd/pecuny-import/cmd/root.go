// Package cmd provides the commands of pecuny-import.
package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pecuny/internal/cli"
	"pecuny/internal/config"
	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
)

// app is the state shared by the subcommands. It is set up once in
// PersistentPreRunE unless a test already filled it in.
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	ledger     *cli.Ledger
	closeStore func() error

	debug bool
	user  string
}

func (a *app) setup() error {
	if a.ledger != nil {
		return nil
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.debug {
		level = "debug"
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(level, log.ComponentImporter)

	store, closeStore, err := cli.OpenStore(cfg, a.logger)
	if err != nil {
		return err
	}
	a.closeStore = closeStore
	a.ledger = cli.NewLedger(store, cfg, metrics.NoOp{})
	return nil
}

func (a *app) teardown() {
	if a.closeStore == nil {
		return
	}
	if err := a.closeStore(); err != nil {
		a.logger.Warn("Failed to close ledger", "error", err)
	}
	a.closeStore = nil
}

func (a *app) currentUser() (core.User, error) {
	id, err := uuid.Parse(a.user)
	if err != nil {
		return core.User{}, fmt.Errorf("invalid --user %q: %w", a.user, err)
	}
	return core.User{ID: id}, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pecuny-import",
		Short: "Bulk import and inspect pecuny ledgers",
		Long: `pecuny-import books semicolon separated bank exports into a pecuny
account and reports the rows it could not book.

The expected header is:
  date;reference;amount;section;category[;offset_account_id]

Example:
  pecuny-import import --user 0b7e... --account 3 --file march.csv
  pecuny-import taxonomy --user 0b7e...`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.user, "user", "", "id of the user acting on the ledger")
	_ = root.MarkPersistentFlagRequired("user")

	root.AddCommand(newImportCmd(a))
	root.AddCommand(newTaxonomyCmd(a))
	root.AddCommand(newAccountsCmd(a))
	return root
}

// Execute runs the command line.
func Execute() error {
	a := &app{}
	defer a.teardown()
	return newRootCmd(a).Execute()
}
