package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/profile"
	"taxwatch/internal/scan"
	id "taxwatch/pkg/domain"
)

func sampleAnalyses() []anomaly.SubjectAnalysis {
	return []anomaly.SubjectAnalysis{{
		SubjectRNOKPP: id.RNOKPP("1234567890"),
		Name:          "Test Subject",
		TotalIncome:   350_000,
		TotalTaxPaid:  63_000,
		RiskScore:     40,
		Anomalies: []anomaly.Anomaly{{
			Code:           anomaly.CodeIncomeSpike,
			Severity:       anomaly.SeverityHigh,
			Title:          "Income spike in 2023",
			Description:    "Income of 300000.00 in 2023 is 5.1x the 58333.33 average across all reported years.",
			Details:        map[string]any{"year": 2023, "ratio": 5.1},
			SubjectRNOKPP:  id.RNOKPP("1234567890"),
			Recommendation: "Identify the source of the additional income for the spike year.",
		}},
	}}
}

func TestJSON(t *testing.T) {
	t.Run("round-trips through the wire shape", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, JSON(&buf, sampleAnalyses()))

		var decoded []anomaly.SubjectAnalysis
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, id.RNOKPP("1234567890"), decoded[0].SubjectRNOKPP)
		assert.Equal(t, anomaly.SeverityHigh, decoded[0].Anomalies[0].Severity)
		assert.Contains(t, buf.String(), `"person_rnokpp"`)
		assert.Contains(t, buf.String(), `"severity": "HIGH"`)
	})

	t.Run("empty input renders an empty array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, JSON(&buf, nil))
		assert.Equal(t, "[]\n", buf.String())
	})
}

func TestTable(t *testing.T) {
	t.Run("lists one row per subject", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Table(&buf, sampleAnalyses()))
		assert.Contains(t, buf.String(), "1234567890")
		assert.Contains(t, buf.String(), "40/100")
		assert.Contains(t, buf.String(), "Test Subject")
	})

	t.Run("empty input says so", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Table(&buf, nil))
		assert.Contains(t, buf.String(), "No anomalies detected")
	})
}

func TestVerbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Verbose(&buf, sampleAnalyses()))
	out := buf.String()
	assert.Contains(t, out, "INCOME_SPIKE")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "recommendation:")
	assert.Contains(t, out, "ratio: 5.1")
}

func TestFamilyWealth(t *testing.T) {
	wealth := &profile.FamilyWealth{
		RootRNOKPP: id.RNOKPP("1234567890"),
		Depth:      2,
		Members: []profile.FamilyMember{
			{RNOKPP: id.RNOKPP("1234567890"), Name: "Root Person", Depth: 0, TotalIncome: 200_000, TotalTax: 36_000, PropertyCount: 1, OrgCount: 1},
			{RNOKPP: id.RNOKPP("2223334445"), Name: "Spouse Person", Depth: 1, TotalIncome: 50_000, TotalTax: 9_000, PropertyCount: 2},
		},
		TotalIncome:   250_000,
		TotalTax:      45_000,
		PropertyCount: 3,
		OrgCount:      1,
	}

	t.Run("table lists members and totals", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FamilyWealth(&buf, wealth))
		out := buf.String()
		assert.Contains(t, out, "depth 2, 2 member(s)")
		assert.Contains(t, out, "Root Person")
		assert.Contains(t, out, "Spouse Person")
		assert.Contains(t, out, "250000.00")
		assert.Contains(t, out, "TOTAL")
	})

	t.Run("json carries the wire shape", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FamilyWealthJSON(&buf, wealth))

		var decoded profile.FamilyWealth
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded.Members, 2)
		assert.Equal(t, id.RNOKPP("1234567890"), decoded.RootRNOKPP)
		assert.Equal(t, 250_000.0, decoded.TotalIncome)
		assert.Contains(t, buf.String(), `"root_rnokpp"`)
	})
}

func TestFailures(t *testing.T) {
	t.Run("lists failed subjects", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Failures(&buf, []scan.Failure{
			{RNOKPP: id.RNOKPP("1111111111"), Reason: "store hiccup"},
		}))
		assert.Contains(t, buf.String(), "1111111111")
		assert.Contains(t, buf.String(), "store hiccup")
	})

	t.Run("silent when nothing failed", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Failures(&buf, nil))
		assert.Empty(t, buf.String())
	})
}
