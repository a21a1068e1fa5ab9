// Package anomaly defines the result types shared by every detector and the
// risk scoring model. Values are built once per analysis call and never
// cached; a score must always be reconstructable by hand from the anomaly
// list.
package anomaly

import (
	"fmt"

	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// Code identifies a detection pattern.
type Code string

const (
	CodeIncomeTaxMismatch        Code = "INCOME_TAX_MISMATCH"
	CodeConcentratedIncome       Code = "CONCENTRATED_INCOME_NO_EMPLOYMENT"
	CodeUnusualIncomeCategory    Code = "UNUSUAL_INCOME_CATEGORY"
	CodeIncomeSpike              Code = "INCOME_SPIKE"
	CodePoAAssetProxy            Code = "POA_ASSET_PROXY"
	CodeConnectedLowIncomeOwner  Code = "CONNECTED_LOW_INCOME_LUXURY_OWNER"
	CodeSuspiciousProxyAsset     Code = "SUSPICIOUS_PROXY_ASSET"
	CodeCivilServiceFoundership  Code = "CIVIL_SERVICE_AND_BUSINESS_FOUNDERSHIP"
)

// Severity is the ordered risk classification of a single anomaly. The
// ordering and the point values are fixed; scoring stays exhaustive over
// these four levels.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

var severityPoints = map[Severity]float64{
	SeverityLow:      10,
	SeverityMedium:   25,
	SeverityHigh:     40,
	SeverityCritical: 60,
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Points returns the fixed contribution of this severity to a risk score.
func (s Severity) Points() float64 {
	return severityPoints[s]
}

// MarshalJSON encodes the severity as its name so reports stay readable.
func (s Severity) MarshalJSON() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown severity %d", int(s))
	}
	return []byte(`"` + name + `"`), nil
}

// UnmarshalJSON decodes a severity name produced by MarshalJSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return dErrors.Newf(dErrors.CodeInvalidInput, "severity must be a JSON string, got %s", raw)
	}
	parsed, err := ParseSeverity(raw[1 : len(raw)-1])
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity maps a severity name back to its ordered value.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown severity %q", name)
}

// Anomaly is a single detected pattern instance. Immutable once constructed;
// Details carries pattern-specific evidence for investigators.
type Anomaly struct {
	Code           Code           `json:"code"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Details        map[string]any `json:"details"`
	SubjectRNOKPP  id.RNOKPP      `json:"subject_rnokpp"`
	Recommendation string         `json:"recommendation"`
}

// SubjectAnalysis is the complete detection result for one subject. It is
// recomputed fresh on every call; nothing here is persisted.
type SubjectAnalysis struct {
	SubjectRNOKPP id.RNOKPP      `json:"person_rnokpp"`
	Name          string         `json:"name,omitempty"`
	TotalIncome   float64        `json:"total_income"`
	TotalTaxPaid  float64        `json:"total_tax_paid"`
	Anomalies     []Anomaly      `json:"anomalies"`
	RiskScore     float64        `json:"risk_score"`
	Summary       map[string]any `json:"analysis_summary,omitempty"`
}
