package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/pipeline"
)

var (
	runTarget    int
	runBirthFrom int
	runBirthTo   int
	metricsAddr  string
	noGeocode    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich the top-ranked candidates, resuming from the checkpoint",
	Long: `Run lists candidates from Wikidata, ranks them and processes the
top N that are not yet completed. Every entity is scraped, extracted,
enriched and written before the checkpoint records it.

Interrupt with Ctrl-C at any time; the next run picks up where this one
stopped.

Example:
  scimap run
  scimap run --target 100 --birth-from 1700 --birth-to 1750
  scimap run --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("target") {
			cfg.Pipeline.Target = runTarget
		}
		if cmd.Flags().Changed("birth-from") {
			cfg.Pipeline.BirthFrom = runBirthFrom
		}
		if cmd.Flags().Changed("birth-to") {
			cfg.Pipeline.BirthTo = runBirthTo
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Pipeline.MetricsAddress = metricsAddr
		}
		if noGeocode {
			cfg.Pipeline.Geocode = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runPipeline(pipeline.ModeResume)
	},
}

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-process only the entities that failed in earlier runs",
	Long: `Retry re-runs the pipeline for exactly the identifiers listed as failed
in the checkpoint. Completed entities and never-attempted candidates are
left untouched. Failed identifiers no longer present in the candidate
list are reported and stay failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noGeocode {
			cfg.Pipeline.Geocode = false
		}
		return runPipeline(pipeline.ModeRetry)
	},
}

func runPipeline(mode pipeline.Mode) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var reg *prometheus.Registry
	if addr := cfg.Pipeline.MetricsAddress; addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pipeline.ServeMetrics(ctx, addr, reg)
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}

	summary, err := a.driver(registerer, os.Stderr).Run(ctx, pipeline.Options{
		Mode:   mode,
		Target: cfg.Pipeline.Target,
	})
	switch {
	case errors.Is(err, context.Canceled):
		zap.L().Warn("interrupted, progress saved", zap.String("checkpoint", cfg.Output.CheckpointPath()))
		return nil
	case err != nil:
		return fmt.Errorf("%s failed: %w", mode, err)
	}

	fmt.Fprintf(os.Stderr, "  Dataset:    %d records in %s\n\n", summary.Dataset, cfg.Output.Dir)
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(retryCmd)

	runCmd.Flags().IntVar(&runTarget, "target", 50, "number of top-ranked candidates to process")
	runCmd.Flags().IntVar(&runBirthFrom, "birth-from", 1650, "earliest birth year")
	runCmd.Flags().IntVar(&runBirthTo, "birth-to", 1800, "latest birth year")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding of event places")

	retryCmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding of event places")
}
