// Package detect holds the pattern detectors. Each detector pairs a gateway
// with a validated threshold config; the pattern rules themselves are pure
// functions over gateway rows so they stay trivially testable.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// Escalation constants. These are part of the detection model, not tunables;
// the CLI thresholds control when a pattern fires, these control how hard.
const (
	mismatchEscalationAmount = 100_000
	unusualEscalationAmount  = 200_000
	spikeHighRatio           = 5.0
	spikeMinimumAverage      = 10_000
	mismatchDetailLimit      = 10
	unusualDetailLimit       = 5
)

var unusualCategoryCodes = map[string]string{
	"126": "additional benefit",
	"178": "gifts and winnings",
	"186": "other income",
}

// IncomeDetector evaluates the four income patterns for a single subject.
type IncomeDetector struct {
	gateway graph.Gateway
	cfg     IncomeConfig
	logger  *slog.Logger
}

type IncomeOption func(*IncomeDetector)

func WithIncomeLogger(logger *slog.Logger) IncomeOption {
	return func(d *IncomeDetector) {
		d.logger = logger
	}
}

// NewIncomeDetector constructs a detector, validating the config up front so
// a bad threshold fails before any subject is processed.
func NewIncomeDetector(gateway graph.Gateway, cfg IncomeConfig, opts ...IncomeOption) (*IncomeDetector, error) {
	if gateway == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &IncomeDetector{gateway: gateway, cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect runs all income patterns and returns their anomalies in pattern
// order. The same subject and data always produce the same result.
func (d *IncomeDetector) Detect(ctx context.Context, rnokpp id.RNOKPP) ([]anomaly.Anomaly, error) {
	records, err := d.gateway.IncomeRecords(ctx, rnokpp)
	if err != nil {
		return nil, err
	}
	relations, err := d.gateway.EmploymentRelations(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	anomalies := detectTaxMismatch(rnokpp, records, d.cfg.MismatchThreshold)
	anomalies = append(anomalies, detectConcentratedIncome(rnokpp, records, relations, d.cfg.ConcentrationThreshold)...)
	anomalies = append(anomalies, detectUnusualCategories(rnokpp, records, d.cfg.UnusualCategoryThreshold)...)
	anomalies = append(anomalies, detectIncomeSpikes(rnokpp, records, d.cfg.SpikeMultiplier)...)

	d.log(ctx, "income detection completed",
		"rnokpp", rnokpp,
		"records", len(records),
		"anomalies", len(anomalies))
	return anomalies, nil
}

// Analyze produces the full scored analysis for one subject. An unknown
// subject is a CodeNotFound error, distinct from a clean subject with zero
// anomalies.
func (d *IncomeDetector) Analyze(ctx context.Context, rnokpp id.RNOKPP) (*anomaly.SubjectAnalysis, error) {
	name, found, err := d.gateway.PersonName(ctx, rnokpp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "person %s not found in registry", rnokpp)
	}

	summary, err := d.gateway.IncomeSummary(ctx, rnokpp)
	if err != nil {
		return nil, err
	}
	anomalies, err := d.Detect(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	return &anomaly.SubjectAnalysis{
		SubjectRNOKPP: rnokpp,
		Name:          name,
		TotalIncome:   summary.TotalIncome,
		TotalTaxPaid:  summary.TotalTax,
		Anomalies:     anomalies,
		RiskScore:     anomaly.Score(anomalies),
		Summary: map[string]any{
			"income_sources": summary.SourceCount,
			"income_records": summary.RecordCount,
			"years_covered":  summary.Years,
		},
	}, nil
}

func (d *IncomeDetector) log(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.DebugContext(ctx, msg, args...)
	}
}

// detectTaxMismatch flags records whose accrued/paid or charged/transferred
// amounts diverge beyond the threshold. All mismatched records fold into one
// anomaly so a subject with systematic under-reporting is scored once for
// the pattern, not once per payslip.
func detectTaxMismatch(rnokpp id.RNOKPP, records []graph.IncomeRecord, threshold float64) []anomaly.Anomaly {
	var (
		totalUnpaidIncome float64
		totalUnpaidTax    float64
		mismatched        []map[string]any
	)
	for _, rec := range records {
		incomeDiff := rec.Accrued - rec.Paid
		taxDiff := rec.TaxCharged - rec.TaxTransferred
		incomeMismatch := math.Abs(incomeDiff) > threshold
		taxMismatch := math.Abs(taxDiff) > threshold
		if !incomeMismatch && !taxMismatch {
			continue
		}
		if incomeMismatch {
			totalUnpaidIncome += incomeDiff
		}
		if taxMismatch {
			totalUnpaidTax += taxDiff
		}
		if len(mismatched) < mismatchDetailLimit {
			mismatched = append(mismatched, map[string]any{
				"year":        rec.PeriodYear,
				"period":      rec.Period,
				"org_edrpou":  rec.OrgEDRPOU,
				"org_name":    rec.OrgName,
				"income_diff": incomeDiff,
				"tax_diff":    taxDiff,
			})
		}
	}
	if len(mismatched) == 0 {
		return nil
	}

	severity := anomaly.SeverityMedium
	if totalUnpaidIncome > mismatchEscalationAmount {
		severity = anomaly.SeverityHigh
	}
	return []anomaly.Anomaly{{
		Code:          anomaly.CodeIncomeTaxMismatch,
		Severity:      severity,
		Title:         "Accrued and paid amounts do not match",
		Description:   fmt.Sprintf("Reported income or tax differs from the transferred amounts across %d record(s); unpaid income %.2f, unpaid tax %.2f.", len(mismatched), totalUnpaidIncome, totalUnpaidTax),
		SubjectRNOKPP: rnokpp,
		Details: map[string]any{
			"total_unpaid_income": totalUnpaidIncome,
			"total_unpaid_tax":    totalUnpaidTax,
			"mismatched_records":  mismatched,
		},
		Recommendation: "Reconcile the subject's declarations against employer tax filings for the affected periods.",
	}}
}

// detectConcentratedIncome flags large income from organizations the subject
// has no registered relation with. One anomaly per paying organization.
func detectConcentratedIncome(rnokpp id.RNOKPP, records []graph.IncomeRecord, relations []graph.EmploymentRelation, threshold float64) []anomaly.Anomaly {
	employed := make(map[id.EDRPOU]struct{}, len(relations))
	for _, rel := range relations {
		employed[rel.OrgEDRPOU] = struct{}{}
	}

	type orgTotal struct {
		name    string
		status  graph.OrgStatus
		total   float64
		records int
		years   map[int]struct{}
	}
	totals := make(map[id.EDRPOU]*orgTotal)
	var order []id.EDRPOU
	for _, rec := range records {
		if _, ok := employed[rec.OrgEDRPOU]; ok {
			continue
		}
		agg, ok := totals[rec.OrgEDRPOU]
		if !ok {
			agg = &orgTotal{name: rec.OrgName, status: rec.OrgStatus, years: make(map[int]struct{})}
			totals[rec.OrgEDRPOU] = agg
			order = append(order, rec.OrgEDRPOU)
		}
		agg.total += rec.Paid
		agg.records++
		agg.years[rec.PeriodYear] = struct{}{}
	}

	var anomalies []anomaly.Anomaly
	for _, edrpou := range order {
		agg := totals[edrpou]
		if agg.total <= threshold {
			continue
		}
		severity := anomaly.SeverityHigh
		description := fmt.Sprintf("Received %.2f from %s without a registered employment or founding relation.", agg.total, agg.name)
		if agg.status.Dissolved() {
			severity = anomaly.SeverityCritical
			description += fmt.Sprintf(" The organization is %s.", agg.status.Text())
		}
		years := make([]int, 0, len(agg.years))
		for y := range agg.years {
			years = append(years, y)
		}
		sort.Ints(years)
		anomalies = append(anomalies, anomaly.Anomaly{
			Code:          anomaly.CodeConcentratedIncome,
			Severity:      severity,
			Title:         "Concentrated income without employment relation",
			Description:   description,
			SubjectRNOKPP: rnokpp,
			Details: map[string]any{
				"org_edrpou":   edrpou,
				"org_name":     agg.name,
				"org_status":   agg.status.Text(),
				"total_income": agg.total,
				"record_count": agg.records,
				"years":        years,
			},
			Recommendation: "Verify the legal basis of payments from this organization and its current registration state.",
		})
	}
	return anomalies
}

// detectUnusualCategories flags income concentrated in the gift/benefit/other
// category codes. A single anomaly covers all matching records.
func detectUnusualCategories(rnokpp id.RNOKPP, records []graph.IncomeRecord, threshold float64) []anomaly.Anomaly {
	var (
		total  float64
		count  int
		byCode = make(map[string]float64)
		top    []map[string]any
	)
	for _, rec := range records {
		label, ok := unusualCategoryCodes[rec.CategoryCode]
		if !ok {
			continue
		}
		total += rec.Paid
		count++
		byCode[rec.CategoryCode] += rec.Paid
		top = append(top, map[string]any{
			"year":       rec.PeriodYear,
			"category":   rec.CategoryCode,
			"label":      label,
			"amount":     rec.Paid,
			"org_edrpou": rec.OrgEDRPOU,
		})
	}
	if total <= threshold {
		return nil
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i]["amount"].(float64) > top[j]["amount"].(float64)
	})
	if len(top) > unusualDetailLimit {
		top = top[:unusualDetailLimit]
	}

	severity := anomaly.SeverityMedium
	if total > unusualEscalationAmount {
		severity = anomaly.SeverityHigh
	}
	return []anomaly.Anomaly{{
		Code:          anomaly.CodeUnusualIncomeCategory,
		Severity:      severity,
		Title:         "Large income in unusual categories",
		Description:   fmt.Sprintf("Received %.2f across %d record(s) in gift, benefit, or other-income categories.", total, count),
		SubjectRNOKPP: rnokpp,
		Details: map[string]any{
			"total_amount": total,
			"record_count": count,
			"by_category":  byCode,
			"top_records":  top,
		},
		Recommendation: "Request documentation for the origin of gift and other-income amounts.",
	}}
}

// detectIncomeSpikes compares each year's total against the average over all
// years. Subjects with a single reporting year or a negligible average never
// spike.
func detectIncomeSpikes(rnokpp id.RNOKPP, records []graph.IncomeRecord, multiplier float64) []anomaly.Anomaly {
	yearly := make(map[int]float64)
	for _, rec := range records {
		yearly[rec.PeriodYear] += rec.Paid
	}
	if len(yearly) < 2 {
		return nil
	}
	var sum float64
	for _, total := range yearly {
		sum += total
	}
	average := sum / float64(len(yearly))
	if average <= spikeMinimumAverage {
		return nil
	}

	var anomalies []anomaly.Anomaly
	for year, total := range yearly {
		if total <= average*multiplier {
			continue
		}
		ratio := total / average
		severity := anomaly.SeverityMedium
		if ratio > spikeHighRatio {
			severity = anomaly.SeverityHigh
		}
		anomalies = append(anomalies, anomaly.Anomaly{
			Code:          anomaly.CodeIncomeSpike,
			Severity:      severity,
			Title:         fmt.Sprintf("Income spike in %d", year),
			Description:   fmt.Sprintf("Income of %.2f in %d is %.1fx the %.2f average across all reported years.", total, year, ratio, average),
			SubjectRNOKPP: rnokpp,
			Details: map[string]any{
				"year":           year,
				"yearly_income":  total,
				"average_income": average,
				"ratio":          ratio,
			},
			Recommendation: "Identify the source of the additional income for the spike year.",
		})
	}
	sort.SliceStable(anomalies, func(i, j int) bool {
		ri := anomalies[i].Details["ratio"].(float64)
		rj := anomalies[j].Details["ratio"].(float64)
		if ri != rj {
			return ri > rj
		}
		return anomalies[i].Details["year"].(int) < anomalies[j].Details["year"].(int)
	})
	return anomalies
}
