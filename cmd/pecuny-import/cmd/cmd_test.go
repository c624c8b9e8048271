package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pecuny/internal/cli"
	"pecuny/internal/config"
	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
	"pecuny/internal/storage/memory"
)

func newTestApp(t *testing.T) (*app, core.User, core.Account) {
	t.Helper()
	ledger := cli.NewLedger(memory.New(), config.FromEnv(), metrics.NoOp{})
	user := core.User{ID: uuid.New()}
	acc, err := ledger.Accounts.CreateAccount(context.Background(), user, core.AccountCreate{Label: "Main", Balance: core.MustAmount("100")})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &app{ledger: ledger, logger: log.New(log.Config{Output: &bytes.Buffer{}})}, user, acc
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportCommand(t *testing.T) {
	a, user, acc := newTestApp(t)
	path := writeCSV(t,
		"date;reference;amount;section;category",
		"2024-03-01;salary;2500.00;Income;Salary",
		"2024-03-02;rent;-700;Hosuing;Rent",
	)

	out, err := run(t, a, "import", "--user", user.ID.String(), "--account", strconv.FormatInt(acc.ID, 10), "--file", path)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	for _, want := range []string{"Imported 1 of 2 rows", "Section Hosuing not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	got, err := a.ledger.Accounts.GetAccount(context.Background(), user, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if core.FormatAmount(got.Balance) != "2600.00" {
		t.Errorf("balance = %s, want 2600.00", core.FormatAmount(got.Balance))
	}
}

func TestImportCommandStrictAndStdin(t *testing.T) {
	a, user, acc := newTestApp(t)
	root := newRootCmd(a)
	root.SetIn(strings.NewReader("date;reference;amount;section;category\nbanane;x;1;Income;Salary\n"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"import", "--user", user.ID.String(), "--account", strconv.FormatInt(acc.ID, 10), "--file", "-", "--strict"})

	if err := root.Execute(); !errors.Is(err, errRowsFailed) {
		t.Fatalf("error = %v, want errRowsFailed", err)
	}
	if !strings.Contains(out.String(), "date format not recognized") {
		t.Errorf("output missing reason:\n%s", out.String())
	}
}

func TestImportCommandErrors(t *testing.T) {
	a, user, acc := newTestApp(t)
	account := strconv.FormatInt(acc.ID, 10)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad user", args: []string{"import", "--user", "bob", "--account", account, "--file", "x.csv"}, want: "invalid --user"},
		{name: "missing file", args: []string{"import", "--user", user.ID.String(), "--account", account, "--file", filepath.Join(t.TempDir(), "nope.csv")}, want: "open input"},
		{name: "empty file", args: []string{"import", "--user", user.ID.String(), "--account", account, "--file", writeCSV(t)}, want: "empty"},
		{name: "foreign account", args: []string{"import", "--user", uuid.NewString(), "--account", account, "--file", writeCSV(t, "date;reference;amount;section;category")}, want: "not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, a, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestAccountsAndTaxonomyCommands(t *testing.T) {
	a, user, _ := newTestApp(t)

	out, err := run(t, a, "accounts", "--user", user.ID.String())
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if !strings.Contains(out, "Main") || !strings.Contains(out, "100.00") {
		t.Errorf("unexpected accounts output:\n%s", out)
	}

	out, err = run(t, a, "taxonomy", "--user", user.ID.String())
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	if !strings.Contains(out, "Income") || !strings.Contains(out, "Salary") || !strings.Contains(out, "global") {
		t.Errorf("unexpected taxonomy output:\n%s", out)
	}
}
