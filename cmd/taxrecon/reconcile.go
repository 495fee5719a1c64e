package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxledger/recon/internal/importer"
	"github.com/taxledger/recon/internal/ledger"
	"github.com/taxledger/recon/internal/recon"
	"github.com/taxledger/recon/internal/store"
)

var (
	outputPath    string
	skipOffsets   bool
	showFamilies  bool
	reviewOnly    bool
	categoryRules string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file>",
	Short: "Import a ledger export, normalize it, and remove offsetting pairs",
	Long: `Reads a CSV or XLSX ledger export, normalizes the table structure, and
runs the offset detector. The cleaned table is written as CSV to the output
path, or to stdout when no output is given.

With --review the detection only reports what would be removed and the input
is left untouched. With --families a debit family linkage report is printed
to stderr as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the cleaned table to this file (default stdout)")
	reconcileCmd.Flags().BoolVar(&skipOffsets, "skip-offsets", false, "normalize only, keep offsetting pairs")
	reconcileCmd.Flags().BoolVar(&showFamilies, "families", false, "print a debit family linkage report to stderr")
	reconcileCmd.Flags().BoolVar(&reviewOnly, "review", false, "preview removals without mutating the table")
	reconcileCmd.Flags().StringVar(&categoryRules, "category-rules", "", "YAML file overriding the case type keyword sets")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	result, err := importer.ImportFile(args[0], data)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	if result.SkippedRows > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d empty rows\n", result.SkippedRows)
	}

	rules := ledger.DefaultCategoryRules()
	if categoryRules != "" {
		rules, err = ledger.LoadCategoryRules(categoryRules)
		if err != nil {
			return fmt.Errorf("category rules: %w", err)
		}
	}

	repo := store.NewMemory()
	engine := recon.New(repo,
		recon.WithAuditLogger(repo),
		recon.WithCategoryRules(rules),
	)
	engine.SetReviewMode(reviewOnly)

	if out := engine.Import(ctx, result.Records); out.Status == recon.StatusFailed {
		return fmt.Errorf("import: %s", out.Message)
	}

	if !skipOffsets {
		out := engine.DetectOffsets(ctx)
		switch out.Status {
		case recon.StatusFailed:
			return fmt.Errorf("offset detection: %s", out.Message)
		default:
			fmt.Fprintln(os.Stderr, out.Message)
		}
	}

	if showFamilies {
		if out := engine.AnalyzeLinkage(); out.Status == recon.StatusFailed {
			return fmt.Errorf("linkage analysis: %s", out.Message)
		}
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(engine.Families()); err != nil {
			return err
		}
	}

	stats := engine.Stats()
	fmt.Fprintf(os.Stderr, "rows: %d total, %d remaining, %d removed; arrears %s\n",
		stats.TotalRows, stats.RemainingRows, stats.RemovedRows,
		ledger.FormatAmount(stats.TotalArrears))

	return writeRecords(engine.Records(), outputPath)
}

func writeRecords(records [][]string, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return nil
}
