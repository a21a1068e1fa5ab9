// surrogate-wallet detects assets registered to low-income persons but
// controlled by someone else through powers of attorney.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/detect"
	"taxwatch/internal/graph/neo4j"
	"taxwatch/internal/platform/config"
	"taxwatch/internal/platform/logger"
	"taxwatch/internal/report"
	"taxwatch/internal/scan"
	"taxwatch/internal/scan/metrics"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		rnokpp      string
		limit       int
		scanProxies bool
		jsonOut     bool
		verbose     bool
		minRisk     float64
		workers     int
		lowIncome   float64
	)

	cmd := &cobra.Command{
		Use:   "surrogate-wallet",
		Short: "Detect assets held through low-income proxies",
		Long: `Cross-references property ownership, declared income, and powers of
attorney. Without --rnokpp every person connected to a power of attorney is
scanned; with --rnokpp a single person is analyzed; --scan-proxies sweeps the
registry from the asset-holder side instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := detect.SurrogateConfig{
				LowIncomeThreshold: lowIncome,
				ScanLimit:          limit,
			}
			return run(cmd.Context(), rnokpp, cfg, limit, workers, minRisk, scanProxies, jsonOut, verbose)
		},
	}

	cmd.Flags().StringVar(&rnokpp, "rnokpp", "", "Analyze a single person by tax id")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of subjects to scan")
	cmd.Flags().BoolVar(&scanProxies, "scan-proxies", false, "Sweep the registry from the asset-holder side")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print full anomaly details and debug logs")
	cmd.Flags().Float64Var(&minRisk, "min-risk", 0, "Drop subjects scoring below this risk")
	cmd.Flags().IntVar(&workers, "workers", scan.DefaultWorkers, "Concurrent analysis workers")
	cmd.Flags().Float64Var(&lowIncome, "low-income-threshold", 100_000, "Declared income below which an asset holder is suspicious")

	return cmd
}

func run(ctx context.Context, rawRNOKPP string, cfg detect.SurrogateConfig, limit, workers int, minRisk float64, scanProxies, jsonOut, verbose bool) error {
	log := logger.New(verbose)

	store, err := neo4j.New(ctx, config.FromEnv())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	detector, err := detect.NewSurrogateDetector(store, cfg, detect.WithSurrogateLogger(log))
	if err != nil {
		return err
	}

	switch {
	case rawRNOKPP != "":
		subject, err := id.ParseRNOKPP(rawRNOKPP)
		if err != nil {
			return err
		}
		analysis, err := detector.Analyze(ctx, subject)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				fmt.Printf("Person %s not found in registry.\n", subject)
				return nil
			}
			return err
		}
		return renderAnalyses([]anomaly.SubjectAnalysis{*analysis}, jsonOut, verbose)

	case scanProxies:
		results, err := detector.ScanProxies(ctx, minRisk)
		if err != nil {
			return err
		}
		return renderAnalyses(results, jsonOut, verbose)

	default:
		orchestrator, err := scan.New(
			scan.PoAUniverse(store),
			detector,
			scan.WithWorkers(workers),
			scan.WithMinRisk(minRisk),
			scan.WithLogger(log),
			scan.WithMetrics(metrics.New()),
		)
		if err != nil {
			return err
		}
		result, err := orchestrator.Run(ctx, limit)
		if err != nil {
			return err
		}
		if err := report.Failures(os.Stderr, result.Failures); err != nil {
			return err
		}
		return renderAnalyses(result.Analyses, jsonOut, verbose)
	}
}

func renderAnalyses(analyses []anomaly.SubjectAnalysis, jsonOut, verbose bool) error {
	switch {
	case jsonOut:
		return report.JSON(os.Stdout, analyses)
	case verbose:
		return report.Verbose(os.Stdout, analyses)
	default:
		return report.Table(os.Stdout, analyses)
	}
}
