package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"StratGate/internal/di"
	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/internal/services/indicator"
	"StratGate/internal/services/strategy"
	"StratGate/pkg/config"
	"StratGate/pkg/util"
)

var (
	configPath string
	symbols    []string
	dataDir    string
	timeframe  string
	startDate  string
	endDate    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stratgate",
		Short: "Strategy validation and optimization engine",
		Long: `stratgate validates trading strategies with purged cross-validation,
walk-forward analysis and overfitting scoring before they touch capital.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (defaults apply when empty)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadWithEnv(configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	// Flags override file values
	if len(symbols) > 0 {
		cfg.Data.Symbols = symbols
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if timeframe != "" {
		cfg.Data.Timeframe = timeframe
	}
	if startDate != "" {
		cfg.Data.Start = startDate
	}
	if endDate != "" {
		cfg.Data.End = endDate
	}
	return cfg, nil
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil, "symbols to validate (comma separated)")
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "directory with <SYMBOL>_<tf>.csv bar files")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "bar timeframe (1m, 5m, 1h, 1d)")
	cmd.Flags().StringVar(&startDate, "start", "", "range start (2006-01-02 or RFC3339)")
	cmd.Flags().StringVar(&endDate, "end", "", "range end")
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate the configured symbols and print a portfolio report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runValidation(cmd.Context(), cfg)
		},
	}
	addDataFlags(cmd)
	return cmd
}

func optimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Validate with genetic parameter search enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Validation.Optimize = true
			return runValidation(cmd.Context(), cfg)
		},
	}
	addDataFlags(cmd)
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the validation engine as an HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization: %w", err)
			}
			return app.Run()
		},
	}
}

func runValidation(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Data.Symbols) == 0 {
		return fmt.Errorf("no symbols configured; use --symbols or the data section of the config file")
	}

	producer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		return err
	}
	log, err := di.ProvideLogger(cfg, producer)
	if err != nil {
		return err
	}
	rec := di.ProvideMetrics()
	provider, err := di.ProvideSeriesProvider(cfg, log)
	if err != nil {
		return err
	}
	store, err := di.ProvideReportStore(cfg)
	if err != nil {
		return err
	}
	pub := di.ProvidePublisher(cfg, producer)
	if store != nil {
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()
	}
	if pub != nil {
		defer pub.Close()
	}
	defer log.RemoveCollector()

	pipeline := di.ProvidePipeline(cfg, log, rec)
	orch := di.ProvideOrchestrator(cfg, provider, pipeline, store, pub, log, rec)

	res, err := orch.Run(
		ctx,
		cfg.Data.Symbols,
		util.ParseTimeDefault(cfg.Data.Start, time.Time{}),
		util.ParseTimeDefault(cfg.Data.End, time.Time{}),
		repository.NormalizeTimeframe(cfg.Data.Timeframe),
		indicator.NewBuiltinExtractor(),
		strategy.NewMomentum(),
		strategy.PassThrough(),
	)
	if err != nil {
		return err
	}

	renderPortfolio(os.Stdout, res)
	return nil
}

func renderPortfolio(out *os.File, res *models.PortfolioResult) {
	fmt.Fprintf(out, "run %s finished in %s\n\n", res.RunID, res.Elapsed.Round(time.Millisecond))

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Symbol", "Bars", "Accuracy", "CV", "Sharpe", "WF Eff", "Overfit", "Verdict"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range res.Symbols {
		table.Append([]string{
			s.Symbol,
			fmt.Sprintf("%d", s.Bars),
			fmt.Sprintf("%.3f", s.Aggregate.MeanAccuracy),
			fmt.Sprintf("%.3f", s.Aggregate.CoefficientOfVariation),
			fmt.Sprintf("%.2f", s.Aggregate.Mean.SharpeRatio),
			fmt.Sprintf("%.2f", s.WalkForward.Efficiency),
			fmt.Sprintf("%.0f", s.Gap.OverfittingScore),
			string(s.Gap.Recommendation),
		})
	}
	table.Render()

	for _, s := range res.Symbols {
		if len(s.BestParameters) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s best parameters (fitness %.4f):\n", s.Symbol, s.BestFitness)
		pt := tablewriter.NewWriter(out)
		pt.SetHeader([]string{"Parameter", "Value"})
		for _, k := range sortedKeys(s.BestParameters) {
			pt.Append([]string{k, fmt.Sprintf("%.4f", s.BestParameters[k])})
		}
		pt.Render()
	}

	if len(res.Failures) > 0 {
		fmt.Fprintf(out, "\nfailures:\n")
		for _, f := range res.Failures {
			reason := f.Reason
			if f.TimedOut {
				reason += " (timed out)"
			}
			fmt.Fprintf(out, "  %s: %s\n", f.Symbol, reason)
		}
	}

	fmt.Fprintf(out, "\nportfolio return: %.2f%%  best: %s  worst: %s\n",
		res.PortfolioReturn*100, res.BestSymbol, res.WorstSymbol)
	if len(res.RecommendedSymbols) > 0 {
		fmt.Fprintf(out, "recommended: %s\n", strings.Join(res.RecommendedSymbols, ", "))
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
