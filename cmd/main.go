package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/refeval/internal/config"
	"github.com/okian/refeval/internal/domain/evaluation"
	"github.com/okian/refeval/internal/domain/recommend"
	"github.com/okian/refeval/pkg/logger"
	"github.com/okian/refeval/pkg/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

// flags holds command-line overrides. Empty strings leave the configured
// value alone; limit applies only when limitSet is true.
type flags struct {
	configFile  string
	dataset     string
	dataDir     string
	limit       int
	limitSet    bool
	logLevel    string
	metricsFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f flags
	rootCmd := &cobra.Command{
		Use:   "refeval",
		Short: "Score a record recommender against the references of a dataset",
		Long: `refeval loads <data-dir>/<dataset>.jsonl, asks a recommender for every
record and reports the mean overlap between the top recommendations and the
references each record declares.

The built-in recommender returns the record itself and the target of its
first reference.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.limitSet = cmd.Flags().Changed("limit")
			return run(cmd.Context(), f, stdout)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "config file path (default $REFEVAL_CONFIG)")
	pf.StringVarP(&f.dataset, "dataset", "d", "", "dataset name (default \"random-core\")")
	pf.StringVar(&f.dataDir, "data-dir", "", "directory holding <dataset>.jsonl (default \"data\")")
	pf.IntVarP(&f.limit, "limit", "k", 0, "recommendations considered per record (default 10)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(versionCmd(stdout))
	return rootCmd
}

func versionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "refeval %s (commit %s)\n", version, commit)
		},
	}
}

// run loads configuration, evaluates the built-in recommender and prints the
// aggregate score to stdout.
func run(ctx context.Context, f flags, stdout io.Writer) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(ctx, f.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	exportMetrics := cfg.MetricsFile != ""
	m := metrics.NewManager(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithLatencyBuckets(cfg.MetricsLatencyBuckets),
		metrics.WithCustomLabels(map[string]string{"dataset": cfg.Dataset}),
		metrics.WithMetricsEnabled(exportMetrics),
	)
	log.Debug(ctx, "configuration resolved",
		logger.String("dataset", cfg.Dataset),
		logger.String("data_dir", cfg.DataDir),
		logger.Int("limit", cfg.Limit),
		logger.Bool("export_metrics", exportMetrics),
	)

	evaluator, err := evaluation.New(ctx, cfg.Dataset,
		evaluation.WithDataDir(cfg.DataDir),
		evaluation.WithLogger(logger.Named("evaluator")),
		evaluation.WithMetrics(m),
	)
	if err != nil {
		log.Error(ctx, "failed to load dataset", logger.String("dataset", cfg.Dataset), logger.Error(err))
		return err
	}

	score, evalErr := evaluator.Evaluate(ctx, recommend.SelfAndFirstReference, cfg.Limit)

	if exportMetrics {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "failed to write metrics", logger.Error(err))
		}
	}
	if evalErr != nil {
		log.Error(ctx, "evaluation failed", logger.String("dataset", cfg.Dataset), logger.Error(evalErr))
		return evalErr
	}

	fmt.Fprintln(stdout, "Score of the dummy recommender:", score)
	return nil
}

func applyFlags(cfg *config.Config, f flags) {
	if f.dataset != "" {
		cfg.Dataset = f.dataset
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.limitSet {
		cfg.Limit = f.limit
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.metricsFile != "" {
		cfg.MetricsFile = f.metricsFile
	}
}
