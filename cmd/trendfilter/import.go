package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendfilter/internal/csvio"
	sqlitestore "trendfilter/internal/store/sqlite"
)

var (
	importInput  string
	importSymbol string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import CSV bars into the SQLite bar store",
	Long: `Import parses an OHLC CSV file and upserts its bars under a symbol.
Stored bars can then be filtered repeatedly without re-reading files:

  trendfilter import --input bars.csv --symbol SBIN
  trendfilter run --symbol SBIN --store`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "CSV file with OHLC bars")
	importCmd.Flags().StringVarP(&importSymbol, "symbol", "s", "", "Symbol to store the bars under")
	importCmd.MarkFlagRequired("input")
	importCmd.MarkFlagRequired("symbol")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := setup("import")
	if err != nil {
		return err
	}
	bars, err := csvio.ReadBars(importInput, importSymbol)
	if err != nil {
		return err
	}

	st, err := sqlitestore.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.WriteBars(cmd.Context(), importSymbol, bars)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d bars for %s into %s\n", n, importSymbol, cfg.SQLite.Path)
	return nil
}
