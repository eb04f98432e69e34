package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger/store"
)

var fix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored balances with their transactions",
	Long: `Compare every stored balance with the total computed from its
transactions and list the ones that disagree.

The computed total is credits minus debits and nothing else. A balance
opened or edited directly through the balances API with a non-zero total
shows up as drift, and --fix resets it to the transaction sum.

Examples:
  accountbook-admin reconcile           # report drift only
  accountbook-admin reconcile --fix     # rewrite drifted balances
  accountbook-admin reconcile --json    # machine readable report`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		drifts, err := ledger.NewProcessor(store.New(db)).Reconcile(cmd.Context(), fix)
		if err != nil {
			return err
		}

		return printDrifts(cmd.OutOrStdout(), drifts, jsonOutput)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&fix, "fix", false, "Rewrite drifted balances to the transaction sum (discards manual totals)")
}

type driftOutput struct {
	BalanceID string `json:"balanceId"`
	AccountID string `json:"accountId"`
	Stored    string `json:"stored"`
	Computed  string `json:"computed"`
	Fixed     bool   `json:"fixed"`
}

func printDrifts(w io.Writer, drifts []ledger.Drift, asJSON bool) error {
	if asJSON {
		out := make([]driftOutput, 0, len(drifts))
		for _, d := range drifts {
			out = append(out, driftOutput{
				BalanceID: d.BalanceID.String(),
				AccountID: d.AccountID.String(),
				Stored:    d.Stored.String(),
				Computed:  d.Computed.String(),
				Fixed:     d.Fixed,
			})
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if len(drifts) == 0 {
		_, err := fmt.Fprintln(w, "all balances match their transactions")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BALANCE\tACCOUNT\tSTORED\tCOMPUTED\tFIXED")

	for _, d := range drifts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", d.BalanceID, d.AccountID, d.Stored, d.Computed, d.Fixed)
	}

	return tw.Flush()
}
