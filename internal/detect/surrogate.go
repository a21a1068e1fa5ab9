package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

const luxuryAssetCount = 2

// SurrogateDetector evaluates the surrogate-wallet patterns: assets formally
// held by low-income persons but controlled, through powers of attorney, by
// someone else.
type SurrogateDetector struct {
	gateway graph.Gateway
	cfg     SurrogateConfig
	logger  *slog.Logger
}

type SurrogateOption func(*SurrogateDetector)

func WithSurrogateLogger(logger *slog.Logger) SurrogateOption {
	return func(d *SurrogateDetector) {
		d.logger = logger
	}
}

func NewSurrogateDetector(gateway graph.Gateway, cfg SurrogateConfig, opts ...SurrogateOption) (*SurrogateDetector, error) {
	if gateway == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &SurrogateDetector{gateway: gateway, cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect runs the per-subject surrogate patterns. The subject is treated as
// the potential beneficial owner, not the asset holder.
func (d *SurrogateDetector) Detect(ctx context.Context, rnokpp id.RNOKPP) ([]anomaly.Anomaly, error) {
	asProxy, err := d.detectAssetProxies(ctx, rnokpp)
	if err != nil {
		return nil, err
	}
	asGrantor, err := d.detectConnectedOwners(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	anomalies := append(asProxy, asGrantor...)
	d.log(ctx, "surrogate detection completed", "rnokpp", rnokpp, "anomalies", len(anomalies))
	return anomalies, nil
}

// Analyze produces the full scored analysis for one subject.
func (d *SurrogateDetector) Analyze(ctx context.Context, rnokpp id.RNOKPP) (*anomaly.SubjectAnalysis, error) {
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

// detectAssetProxies covers the representative side: the subject holds a
// power of attorney over a property owned by a low-income person. One
// anomaly per (owner, property) pair.
func (d *SurrogateDetector) detectAssetProxies(ctx context.Context, rnokpp id.RNOKPP) ([]anomaly.Anomaly, error) {
	grants, err := d.gateway.PoAAsRepresentative(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	var anomalies []anomaly.Anomaly
	incomes := make(map[id.RNOKPP]float64)
	for _, grant := range grants {
		if grant.Property == nil {
			continue
		}
		owners, err := d.gateway.PropertyOwners(ctx, grant.Property.PropertyID)
		if err != nil {
			return nil, err
		}
		for _, owner := range owners {
			if owner == rnokpp {
				continue
			}
			income, ok := incomes[owner]
			if !ok {
				income, err = d.gateway.TotalPaidIncome(ctx, owner)
				if err != nil {
					return nil, err
				}
				incomes[owner] = income
			}
			if income >= d.cfg.LowIncomeThreshold {
				continue
			}
			severity := anomaly.SeverityHigh
			description := fmt.Sprintf("Holds power of attorney %s over %s owned by %s, whose declared income is %.2f.", grant.PoAID, grant.Property.Description, owner, income)
			if income == 0 {
				severity = anomaly.SeverityCritical
				description = fmt.Sprintf("Holds power of attorney %s over %s owned by %s, who has no declared income at all.", grant.PoAID, grant.Property.Description, owner)
			}
			anomalies = append(anomalies, anomaly.Anomaly{
				Code:          anomaly.CodePoAAssetProxy,
				Severity:      severity,
				Title:         "Controls asset of a low-income owner",
				Description:   description,
				SubjectRNOKPP: rnokpp,
				Details: map[string]any{
					"poa_id":        grant.PoAID,
					"property_id":   grant.Property.PropertyID,
					"property_type": string(grant.Property.Type),
					"owner_rnokpp":  owner,
					"owner_income":  income,
				},
				Recommendation: "Establish how the owner financed the asset and why control was delegated to the subject.",
			})
		}
	}
	return anomalies, nil
}

// detectConnectedOwners covers the grantor side: persons the subject granted
// powers of attorney to, who own property they could not plausibly afford.
// One anomaly per connected person.
func (d *SurrogateDetector) detectConnectedOwners(ctx context.Context, rnokpp id.RNOKPP) ([]anomaly.Anomaly, error) {
	grants, err := d.gateway.PoAAsGrantor(ctx, rnokpp)
	if err != nil {
		return nil, err
	}

	var anomalies []anomaly.Anomaly
	seen := make(map[id.RNOKPP]struct{})
	for _, grant := range grants {
		rep := grant.Representative
		if rep == rnokpp {
			continue
		}
		if _, ok := seen[rep]; ok {
			continue
		}
		seen[rep] = struct{}{}

		properties, err := d.gateway.OwnedProperties(ctx, rep)
		if err != nil {
			return nil, err
		}
		if len(properties) == 0 {
			continue
		}
		income, err := d.gateway.TotalPaidIncome(ctx, rep)
		if err != nil {
			return nil, err
		}
		if income >= d.cfg.LowIncomeThreshold {
			continue
		}

		assets := make([]map[string]any, 0, unusualDetailLimit)
		for _, prop := range properties {
			if len(assets) == unusualDetailLimit {
				break
			}
			assets = append(assets, map[string]any{
				"property_id":   prop.PropertyID,
				"property_type": string(prop.Type),
				"description":   prop.Description,
			})
		}
		severity := anomaly.SeverityHigh
		if len(properties) > luxuryAssetCount {
			severity = anomaly.SeverityCritical
		}
		anomalies = append(anomalies, anomaly.Anomaly{
			Code:          anomaly.CodeConnectedLowIncomeOwner,
			Severity:      severity,
			Title:         "Connected low-income person holds assets",
			Description:   fmt.Sprintf("Granted power of attorney to %s, who owns %d asset(s) on a declared income of %.2f.", rep, len(properties), income),
			SubjectRNOKPP: rnokpp,
			Details: map[string]any{
				"proxy_rnokpp": rep,
				"proxy_income": income,
				"asset_count":  len(properties),
				"assets":       assets,
				"poa_id":       grant.PoAID,
			},
			Recommendation: "Trace the funds used for the connected person's asset purchases.",
		})
	}
	return anomalies, nil
}

// ScanProxies sweeps the whole registry for low-income property owners whose
// assets are controlled by a distinct person through a power of attorney.
// Results are grouped by the controlling person, scored per person, and
// persons scoring below minRisk are dropped.
func (d *SurrogateDetector) ScanProxies(ctx context.Context, minRisk float64) ([]anomaly.SubjectAnalysis, error) {
	links, err := d.gateway.LowIncomePropertyOwners(ctx, d.cfg.LowIncomeThreshold, d.cfg.ScanLimit)
	if err != nil {
		return nil, err
	}

	grouped := make(map[id.RNOKPP]*anomaly.SubjectAnalysis)
	var order []id.RNOKPP
	for _, link := range links {
		analysis, ok := grouped[link.OfficialRNOKPP]
		if !ok {
			analysis = &anomaly.SubjectAnalysis{
				SubjectRNOKPP: link.OfficialRNOKPP,
				Name:          link.OfficialName,
			}
			grouped[link.OfficialRNOKPP] = analysis
			order = append(order, link.OfficialRNOKPP)
		}
		analysis.Anomalies = append(analysis.Anomalies, anomaly.Anomaly{
			Code:          anomaly.CodeSuspiciousProxyAsset,
			Severity:      anomaly.SeverityHigh,
			Title:         "Controls asset registered to a low-income holder",
			Description:   fmt.Sprintf("Power of attorney %s places %s, owned by %s (declared income %.2f), under the subject's control.", link.PoAID, link.Property.Description, link.ProxyRNOKPP, link.ProxyIncome),
			SubjectRNOKPP: link.OfficialRNOKPP,
			Details: map[string]any{
				"poa_id":        link.PoAID,
				"property_id":   link.Property.PropertyID,
				"property_type": string(link.Property.Type),
				"proxy_rnokpp":  link.ProxyRNOKPP,
				"proxy_name":    link.ProxyName,
				"proxy_income":  link.ProxyIncome,
			},
			Recommendation: "Review the holder's ability to finance the asset and the subject's relation to them.",
		})
	}

	results := make([]anomaly.SubjectAnalysis, 0, len(order))
	for _, official := range order {
		analysis := grouped[official]
		analysis.RiskScore = anomaly.Score(analysis.Anomalies)
		if analysis.RiskScore < minRisk {
			continue
		}
		results = append(results, *analysis)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RiskScore != results[j].RiskScore {
			return results[i].RiskScore > results[j].RiskScore
		}
		return results[i].SubjectRNOKPP < results[j].SubjectRNOKPP
	})
	d.log(ctx, "proxy scan completed", "links", len(links), "officials", len(results))
	return results, nil
}

func (d *SurrogateDetector) log(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.DebugContext(ctx, msg, args...)
	}
}
