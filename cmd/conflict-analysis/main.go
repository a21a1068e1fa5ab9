// conflict-analysis flags civil servants who simultaneously found private
// businesses.
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
		rnokpp  string
		limit   int
		jsonOut bool
		verbose bool
		minRisk float64
		workers int
	)

	cmd := &cobra.Command{
		Use:   "conflict-analysis",
		Short: "Detect conflicts between civil service and business interests",
		Long: `Flags persons who direct a government organization while founding private
businesses. Without --rnokpp the top earners are scanned; with --rnokpp a
single person is analyzed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rnokpp, limit, workers, minRisk, jsonOut, verbose)
		},
	}

	cmd.Flags().StringVar(&rnokpp, "rnokpp", "", "Analyze a single person by tax id")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of subjects to scan")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print full anomaly details and debug logs")
	cmd.Flags().Float64Var(&minRisk, "min-risk", 0, "Drop subjects scoring below this risk")
	cmd.Flags().IntVar(&workers, "workers", scan.DefaultWorkers, "Concurrent analysis workers")

	return cmd
}

func run(ctx context.Context, rawRNOKPP string, limit, workers int, minRisk float64, jsonOut, verbose bool) error {
	log := logger.New(verbose)

	store, err := neo4j.New(ctx, config.FromEnv())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	detector, err := detect.NewConflictDetector(store, detect.DefaultConflictConfig(), detect.WithConflictLogger(log))
	if err != nil {
		return err
	}

	if rawRNOKPP != "" {
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
	}

	orchestrator, err := scan.New(
		scan.IncomeUniverse(store),
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
