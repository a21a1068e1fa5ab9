// income-analysis detects income anomalies for one person or for the top
// earners in the registry and prints risk-scored results.
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
	"taxwatch/internal/profile"
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
		rnokpp       string
		limit        int
		jsonOut      bool
		verbose      bool
		minRisk      float64
		workers      int
		mismatch     float64
		concentr     float64
		unusualCat   float64
		spikeMult    float64
		familyWealth bool
		familyDepth  int
	)

	cmd := &cobra.Command{
		Use:   "income-analysis",
		Short: "Detect income anomalies in the registry graph",
		Long: `Analyzes declared income against tax payments, employment relations, and
year-over-year dynamics. Without --rnokpp the top earners are scanned; with
--rnokpp a single person is analyzed. --family-wealth aggregates income, tax,
and assets across the person's family relations instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyWealth && rnokpp == "" {
				return dErrors.New(dErrors.CodeInvalidInput, "--family-wealth requires --rnokpp")
			}
			if familyWealth {
				return runFamilyWealth(cmd.Context(), rnokpp, familyDepth, jsonOut, verbose)
			}
			cfg := detect.IncomeConfig{
				MismatchThreshold:        mismatch,
				ConcentrationThreshold:   concentr,
				UnusualCategoryThreshold: unusualCat,
				SpikeMultiplier:          spikeMult,
			}
			return run(cmd.Context(), rnokpp, cfg, limit, workers, minRisk, jsonOut, verbose)
		},
	}

	cmd.Flags().StringVar(&rnokpp, "rnokpp", "", "Analyze a single person by tax id")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of subjects to scan")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print full anomaly details and debug logs")
	cmd.Flags().Float64Var(&minRisk, "min-risk", 0, "Drop subjects scoring below this risk")
	cmd.Flags().IntVar(&workers, "workers", scan.DefaultWorkers, "Concurrent analysis workers")
	cmd.Flags().Float64Var(&mismatch, "mismatch-threshold", 1_000, "Minimum accrued/paid difference to count as a mismatch")
	cmd.Flags().Float64Var(&concentr, "concentration-threshold", 100_000, "Minimum unexplained income from one organization")
	cmd.Flags().Float64Var(&unusualCat, "unusual-category-threshold", 50_000, "Minimum summed income in unusual categories")
	cmd.Flags().Float64Var(&spikeMult, "spike-multiplier", 3.0, "Yearly income over average ratio that counts as a spike")
	cmd.Flags().BoolVar(&familyWealth, "family-wealth", false, "Aggregate wealth across the person's family instead of detecting anomalies")
	cmd.Flags().IntVar(&familyDepth, "family-depth", profile.DefaultFamilyDepth, "Family relation hops to include in the wealth aggregate")

	return cmd
}

func runFamilyWealth(ctx context.Context, rawRNOKPP string, depth int, jsonOut, verbose bool) error {
	log := logger.New(verbose)

	root, err := id.ParseRNOKPP(rawRNOKPP)
	if err != nil {
		return err
	}

	store, err := neo4j.New(ctx, config.FromEnv())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	aggregator, err := profile.New(store, profile.WithLogger(log))
	if err != nil {
		return err
	}
	wealth, err := aggregator.FamilyWealthAggregate(ctx, root, depth)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			fmt.Printf("Person %s not found in registry.\n", root)
			return nil
		}
		return err
	}
	if jsonOut {
		return report.FamilyWealthJSON(os.Stdout, wealth)
	}
	return report.FamilyWealth(os.Stdout, wealth)
}

func run(ctx context.Context, rawRNOKPP string, cfg detect.IncomeConfig, limit, workers int, minRisk float64, jsonOut, verbose bool) error {
	log := logger.New(verbose)

	store, err := neo4j.New(ctx, config.FromEnv())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	detector, err := detect.NewIncomeDetector(store, cfg, detect.WithIncomeLogger(log))
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
