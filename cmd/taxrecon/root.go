package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxledger/recon/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "taxrecon",
	Short: "Reconcile tax ledger exports offline",
	Long: `taxrecon runs the ledger reconciliation engine against a CSV or XLSX
export without a server or database.

It normalizes the table (group totals, separators, grand total), removes
offsetting debit/credit pairs, and can analyze debit family linkage.

Example usage:
  taxrecon reconcile ledger.csv -o cleaned.csv
  taxrecon reconcile ledger.xlsx --families
  taxrecon reconcile ledger.csv --review`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Setup(level, "text")
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
