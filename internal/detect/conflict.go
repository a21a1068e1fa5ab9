package detect

import (
	"context"
	"fmt"
	"log/slog"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// ConflictDetector flags persons who direct a government body while also
// founding private businesses.
type ConflictDetector struct {
	gateway graph.Gateway
	cfg     ConflictConfig
	logger  *slog.Logger
}

type ConflictOption func(*ConflictDetector)

func WithConflictLogger(logger *slog.Logger) ConflictOption {
	return func(d *ConflictDetector) {
		d.logger = logger
	}
}

func NewConflictDetector(gateway graph.Gateway, cfg ConflictConfig, opts ...ConflictOption) (*ConflictDetector, error) {
	if gateway == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &ConflictDetector{gateway: gateway, cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect emits at most one anomaly: directing any government organization
// while founding any private one.
func (d *ConflictDetector) Detect(ctx context.Context, rnokpp id.RNOKPP) ([]anomaly.Anomaly, error) {
	relations, err := d.gateway.EmploymentRelations(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	var governmentPosts, privateBusinesses []map[string]any
	for _, rel := range relations {
		_, government := d.cfg.GovernmentLegalForms[rel.LegalFormCode]
		entry := map[string]any{
			"org_edrpou": rel.OrgEDRPOU,
			"org_name":   rel.OrgName,
			"olf_code":   rel.LegalFormCode,
		}
		switch {
		case rel.Role == graph.RoleDirector && government:
			governmentPosts = append(governmentPosts, entry)
		case rel.Role == graph.RoleFounder && !government:
			privateBusinesses = append(privateBusinesses, entry)
		}
	}
	if len(governmentPosts) == 0 || len(privateBusinesses) == 0 {
		d.log(ctx, "no conflict of interest", "rnokpp", rnokpp)
		return nil, nil
	}

	return []anomaly.Anomaly{{
		Code:          anomaly.CodeCivilServiceFoundership,
		Severity:      anomaly.SeverityCritical,
		Title:         "Civil servant founds private business",
		Description:   fmt.Sprintf("Directs %d government organization(s) while founding %d private business(es).", len(governmentPosts), len(privateBusinesses)),
		SubjectRNOKPP: rnokpp,
		Details: map[string]any{
			"government_posts":   governmentPosts,
			"private_businesses": privateBusinesses,
		},
		Recommendation: "Check anticorruption declarations for the listed founderships and whether the businesses contract with the subject's agency.",
	}}, nil
}

// Analyze produces the full scored analysis for one subject.
func (d *ConflictDetector) Analyze(ctx context.Context, rnokpp id.RNOKPP) (*anomaly.SubjectAnalysis, error) {
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
	}, nil
}

func (d *ConflictDetector) log(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.DebugContext(ctx, msg, args...)
	}
}
