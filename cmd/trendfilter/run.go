package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trendfilter/config"
	"trendfilter/internal/csvio"
	"trendfilter/internal/filter"
	"trendfilter/internal/gateway"
	"trendfilter/internal/model"
	"trendfilter/internal/resample"
	sqlitestore "trendfilter/internal/store/sqlite"
)

var (
	runInput     string
	runOutput    string
	runSymbol    string
	runProfile   string
	runStore     bool
	runFromIndex int
	runLimit     int
	runGroup     int
	runInterval  time.Duration

	runType           string
	runSource         string
	runQuantity       float64
	runScale          string
	runPeriod         int
	runSmoothRange    bool
	runSmoothPeriod   int
	runAverageValues  bool
	runAverageSamples int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the filter once over a CSV file or stored bars",
	Long: `Run executes one filter pass. Bars come from --input (a CSV file) or,
when --input is empty, from the SQLite bar store for --symbol. The
resulting records go to --output as CSV, or to stdout.

Parameters start from the chosen config profile; any flag set on the
command line overrides the profile value.

Example usage:
  trendfilter run --input bars.csv --output filtered.csv
  trendfilter run --input bars.csv --type catchup --scale atr --quantity 3
  trendfilter run --input ticks.csv --interval 5m
  trendfilter run --symbol SBIN --store`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runInput, "input", "i", "", "CSV file with OHLC bars")
	f.StringVarP(&runOutput, "output", "o", "", "CSV output path (empty = stdout)")
	f.StringVarP(&runSymbol, "symbol", "s", "", "Symbol for stored bars and persisted runs")
	f.StringVar(&runProfile, "profile", "default", "Config profile to start from")
	f.BoolVar(&runStore, "store", false, "Persist the run into SQLite")
	f.IntVar(&runFromIndex, "from-index", 0, "First stored bar index to read")
	f.IntVar(&runLimit, "limit", 0, "Max stored bars to read (0 = all)")
	f.IntVar(&runGroup, "group", 0, "Merge every N input bars into one")
	f.DurationVar(&runInterval, "interval", 0, "Bucket input bars by timestamp interval (e.g. 5m)")

	f.StringVar(&runType, "type", "", "Filter type (clamp|catchup)")
	f.StringVar(&runSource, "source", "", "Movement source (close|wicks)")
	f.Float64Var(&runQuantity, "quantity", 0, "Range size multiplier")
	f.StringVar(&runScale, "scale", "", "Range scale (pips|points|ticks|percent|absolute|avgchange|stddev|atr)")
	f.IntVar(&runPeriod, "period", 0, "Lookback period for dynamic scales")
	f.BoolVar(&runSmoothRange, "smooth-range", true, "Smooth the range size with an EMA")
	f.IntVar(&runSmoothPeriod, "smooth-period", 0, "Smoothing EMA period")
	f.BoolVar(&runAverageValues, "average-values", false, "Average changed filter values")
	f.IntVar(&runAverageSamples, "average-samples", 0, "Samples in the value average")
}

// runParams resolves the profile and layers explicitly set flags on top.
func runParams(cmd *cobra.Command, cfg *config.Config) (filter.Params, error) {
	prof, ok := cfg.Profiles[runProfile]
	if !ok {
		return filter.Params{}, fmt.Errorf("%w: unknown profile %q", model.ErrConfig, runProfile)
	}
	p := prof.Params()

	f := cmd.Flags()
	if f.Changed("type") {
		p.Type = filter.FilterType(runType)
	}
	if f.Changed("source") {
		p.Source = filter.MovementSource(runSource)
	}
	if f.Changed("quantity") {
		p.Quantity = runQuantity
	}
	if f.Changed("scale") {
		p.Scale = filter.RangeScale(runScale)
	}
	if f.Changed("period") {
		p.Period = runPeriod
	}
	if f.Changed("smooth-range") {
		p.SmoothRange = runSmoothRange
	}
	if f.Changed("smooth-period") {
		p.SmoothPeriod = runSmoothPeriod
	}
	if f.Changed("average-values") {
		p.AverageValues = runAverageValues
	}
	if f.Changed("average-samples") {
		p.AverageSamples = runAverageSamples
	}
	return p, p.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := setup("run")
	if err != nil {
		return err
	}
	if runInput == "" && runSymbol == "" {
		return fmt.Errorf("%w: --input or --symbol required", model.ErrConfig)
	}
	if runStore && runSymbol == "" {
		return fmt.Errorf("%w: --store needs --symbol", model.ErrConfig)
	}
	params, err := runParams(cmd, cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var st *sqlitestore.Store
	if runStore || runInput == "" {
		if st, err = sqlitestore.Open(cfg.SQLite.Path); err != nil {
			return err
		}
		defer st.Close()
	}

	var bars []model.Bar
	if runInput != "" {
		if bars, err = csvio.ReadBars(runInput, runSymbol); err != nil {
			return err
		}
	} else {
		if bars, err = st.ReadBars(ctx, runSymbol, runFromIndex, runLimit); err != nil {
			return err
		}
		if len(bars) == 0 {
			return fmt.Errorf("%w: no stored bars for %s", model.ErrData, runSymbol)
		}
	}

	switch {
	case runGroup > 1:
		if bars, err = resample.ByCount(bars, runGroup); err != nil {
			return err
		}
	case runInterval > 0:
		if bars, err = resample.ByDuration(bars, runInterval); err != nil {
			return err
		}
	}

	var (
		sum     model.RunSummary
		records []model.FilterRecord
	)
	if runStore {
		svc := &gateway.Service{Runs: st, Snaps: st}
		if sum, records, err = svc.Run(ctx, gateway.RunRequest{
			Symbol: runSymbol,
			Params: &params,
			Bars:   bars,
		}); err != nil {
			return err
		}
	} else {
		eng, err := filter.New(params)
		if err != nil {
			return err
		}
		if records, err = eng.Run(bars); err != nil {
			return err
		}
		sum = eng.Summary()
		sum.Symbol = runSymbol
	}

	if runOutput != "" {
		err = csvio.WriteRecordsFile(runOutput, bars, records)
	} else {
		err = csvio.WriteRecords(os.Stdout, bars, records)
	}
	if err != nil {
		return err
	}

	printRunBanner(sum, runOutput)
	return nil
}

// printRunBanner writes the completion box to stderr so piped record
// output stays clean.
func printRunBanner(sum model.RunSummary, output string) {
	dest := output
	if dest == "" {
		dest = "stdout"
	}
	w := os.Stderr
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════╗")
	fmt.Fprintln(w, "║         FILTER RUN COMPLETE          ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════╣")
	fmt.Fprintf(w, "║  %-18s %-16d ║\n", "Bars processed:", sum.Bars)
	fmt.Fprintf(w, "║  %-18s %-16d ║\n", "Filter changes:", sum.Changes)
	fmt.Fprintf(w, "║  %-18s %-16d ║\n", "Trend reversals:", sum.Reversals)
	fmt.Fprintf(w, "║  %-18s %-16.4f ║\n", "Final filter:", sum.FinalFilter)
	fmt.Fprintf(w, "║  %-18s %-16v ║\n", "Final direction:", sum.FinalDirection)
	fmt.Fprintf(w, "║  %-18s %-16s ║\n", "Records to:", dest)
	fmt.Fprintln(w, "╚══════════════════════════════════════╝")
}
