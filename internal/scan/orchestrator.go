// Package scan runs detectors over a whole subject universe with a bounded
// worker pool. A failed subject never aborts the batch; the scan reports the
// failure and keeps going.
package scan

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/graph"
	"taxwatch/internal/scan/metrics"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// DefaultWorkers bounds the pool when the caller does not choose a size.
const DefaultWorkers = 4

// Analyzer produces a scored analysis for one subject. All detectors expose
// this shape.
type Analyzer interface {
	Analyze(ctx context.Context, rnokpp id.RNOKPP) (*anomaly.SubjectAnalysis, error)
}

// Source enumerates the subject universe for a scan, bounded by limit.
type Source func(ctx context.Context, limit int) ([]id.RNOKPP, error)

// IncomeUniverse scans every person with recorded income, highest earners
// first.
func IncomeUniverse(gateway graph.Gateway) Source {
	return func(ctx context.Context, limit int) ([]id.RNOKPP, error) {
		subjects, err := gateway.SubjectsWithIncome(ctx, limit)
		if err != nil {
			return nil, err
		}
		out := make([]id.RNOKPP, 0, len(subjects))
		for _, subject := range subjects {
			out = append(out, subject.RNOKPP)
		}
		return out, nil
	}
}

// PoAUniverse scans every person that appears on either side of a power of
// attorney.
func PoAUniverse(gateway graph.Gateway) Source {
	return gateway.PoAConnectedPersons
}

// Failure records one subject the scan could not analyze.
type Failure struct {
	RNOKPP id.RNOKPP `json:"rnokpp"`
	Reason string    `json:"reason"`
}

// Result is the outcome of one scan run. Analyses are filtered to subjects
// with at least one anomaly at or above the configured risk floor, ordered by
// risk descending, then total income descending, then subject id.
type Result struct {
	RunID    uuid.UUID                 `json:"run_id"`
	Scanned  int                       `json:"scanned"`
	Analyses []anomaly.SubjectAnalysis `json:"analyses"`
	Failures []Failure                 `json:"failures,omitempty"`
	Duration time.Duration             `json:"duration"`
}

// Orchestrator fans a subject universe out over a bounded worker pool.
type Orchestrator struct {
	source   Source
	analyzer Analyzer
	workers  int
	minRisk  float64
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithWorkers sets the pool size. Values below one fall back to the default.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMinRisk drops analyses scoring below the floor.
func WithMinRisk(minRisk float64) Option {
	return func(o *Orchestrator) {
		o.minRisk = minRisk
	}
}

func New(source Source, analyzer Analyzer, opts ...Option) (*Orchestrator, error) {
	if source == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject source is required")
	}
	if analyzer == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "analyzer is required")
	}
	o := &Orchestrator{source: source, analyzer: analyzer, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run analyzes up to limit subjects. Per-subject failures are collected, not
// propagated; a canceled context stops dispatching and returns whatever
// completed. Only enumerating the universe itself can fail the run.
func (o *Orchestrator) Run(ctx context.Context, limit int) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.New()}

	subjects, err := o.source(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to enumerate scan subjects")
	}
	result.Scanned = len(subjects)
	o.log(ctx, "scan started", "run_id", result.RunID, "subjects", len(subjects), "workers", o.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, subject := range subjects {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			analysis, err := o.analyzeOne(gctx, subject)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, Failure{RNOKPP: subject, Reason: err.Error()})
				return nil
			}
			if analysis != nil {
				result.Analyses = append(result.Analyses, *analysis)
			}
			return nil
		})
	}
	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()

	sortAnalyses(result.Analyses)
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].RNOKPP < result.Failures[j].RNOKPP
	})
	result.Duration = time.Since(start)
	o.metrics.ObserveScanLatency(result.Duration)
	o.log(ctx, "scan finished",
		"run_id", result.RunID,
		"flagged", len(result.Analyses),
		"failed", len(result.Failures),
		"duration", result.Duration)
	return result, nil
}

// analyzeOne runs one subject and applies the result filters. A nil analysis
// with nil error means the subject was skipped or below the risk floor.
func (o *Orchestrator) analyzeOne(ctx context.Context, subject id.RNOKPP) (*anomaly.SubjectAnalysis, error) {
	if ctx.Err() != nil {
		return nil, nil
	}
	start := time.Now()
	analysis, err := o.analyzer.Analyze(ctx, subject)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation mid-flight is a skip, not a subject failure.
			return nil, nil
		}
		outcome := "failed"
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			outcome = "not_found"
		}
		o.metrics.ObserveSubjectLatency(outcome, time.Since(start))
		o.log(ctx, "subject analysis failed", "rnokpp", subject, "error", err)
		return nil, err
	}
	o.metrics.ObserveSubjectLatency("ok", time.Since(start))
	for _, a := range analysis.Anomalies {
		o.metrics.IncrementAnomaly(string(a.Code), a.Severity.String())
	}
	if len(analysis.Anomalies) == 0 || analysis.RiskScore < o.minRisk {
		return nil, nil
	}
	return analysis, nil
}

func sortAnalyses(analyses []anomaly.SubjectAnalysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		if analyses[i].RiskScore != analyses[j].RiskScore {
			return analyses[i].RiskScore > analyses[j].RiskScore
		}
		if analyses[i].TotalIncome != analyses[j].TotalIncome {
			return analyses[i].TotalIncome > analyses[j].TotalIncome
		}
		return analyses[i].SubjectRNOKPP < analyses[j].SubjectRNOKPP
	})
}

func (o *Orchestrator) log(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.InfoContext(ctx, msg, args...)
	}
}
