package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/ingestion"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/simulation"
)

// nowUTC stamps reports; tests replace it.
var nowUTC = func() time.Time { return time.Now().UTC() }

type estimateOptions struct {
	lending   string
	recovery  string
	method    string
	samples   int
	alpha     float64
	seed      uint64
	workers   int
	delimiter string
	outDir    string
	verbose   bool
}

func newEstimateCmd() *cobra.Command {
	opts := &estimateOptions{}

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the provision distribution of two ledgers",
		Long: `Resample a lending and a recovery ledger and report the resulting
provision distribution.

With --out, provisions_<method>.csv, report.md and report.html are written
to the given directory.

Example:
  provisionctl estimate --lending lending.csv --recovery recovery.csv \
    --method bootstrap --samples 5000 --alpha 0.95 --seed 42 --out out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.lending, "lending", "", "path to the lending ledger (required)")
	f.StringVar(&opts.recovery, "recovery", "", "path to the recovery ledger (required)")
	f.StringVarP(&opts.method, "method", "m", string(domain.MethodMonteCarlo), "resampling method: montecarlo or bootstrap")
	f.IntVarP(&opts.samples, "samples", "n", domain.DefaultSamples, "number of simulated provisions")
	f.Float64VarP(&opts.alpha, "alpha", "a", domain.DefaultAlpha, "confidence level of the interval")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed (0 seeds from the clock)")
	f.IntVar(&opts.workers, "workers", 0, "worker goroutines (0 means GOMAXPROCS)")
	f.StringVar(&opts.delimiter, "delimiter", string(ingestion.DefaultDelimiter), "ledger field delimiter")
	f.StringVarP(&opts.outDir, "out", "o", "", "directory for CSV and report output")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log resampler fallbacks")
	_ = cmd.MarkFlagRequired("lending")
	_ = cmd.MarkFlagRequired("recovery")

	return cmd
}

func runEstimate(cmd *cobra.Command, opts *estimateOptions) error {
	method, ok := domain.ParseMethod(opts.method)
	if !ok {
		return fmt.Errorf("unknown method %q", opts.method)
	}
	if opts.samples < domain.MinSamples || opts.samples > domain.MaxSamples {
		return fmt.Errorf("samples must be in [%d, %d]", domain.MinSamples, domain.MaxSamples)
	}
	delim := []rune(opts.delimiter)
	if len(delim) != 1 {
		return fmt.Errorf("delimiter must be a single character")
	}

	readOpts := ingestion.DefaultOptions()
	readOpts.Delimiter = delim[0]

	lending, err := ingestion.ReadLedgerFile(opts.lending, readOpts)
	if err != nil {
		return fmt.Errorf("read lending ledger: %w", err)
	}
	recovery, err := ingestion.ReadLedgerFile(opts.recovery, readOpts)
	if err != nil {
		return fmt.Errorf("read recovery ledger: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dist, err := simulation.Estimate(ctx, lending, recovery, simulation.Params{
		Method:  method,
		Samples: opts.samples,
		Alpha:   opts.alpha,
		Workers: opts.workers,
		Seed:    opts.seed,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	report := reporting.Build("local", dist, opts.alpha, nowUTC())
	md := reporting.RenderMarkdown(report)
	fmt.Fprint(cmd.OutOrStdout(), md)

	if opts.outDir == "" {
		return nil
	}
	return writeOutputs(cmd, opts.outDir, dist, md)
}

func writeOutputs(cmd *cobra.Command, dir string, dist *domain.ProvisionDistribution, md string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	html, err := reporting.RenderHTML(md)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	files := map[string]string{
		fmt.Sprintf("provisions_%s.csv", dist.Method): reporting.RenderProvisionsCSV(dist.Values),
		"report.md":   md,
		"report.html": html,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	}
	return nil
}
