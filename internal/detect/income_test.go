package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/graph"
	"taxwatch/internal/graph/memory"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// =============================================================================
// Income Detector Test Suite
// =============================================================================
// The four income patterns carry the threshold and escalation rules of the
// analysis model; the fixtures below pin every boundary exactly.

type IncomeDetectorSuite struct {
	suite.Suite
	store    *memory.Store
	detector *IncomeDetector
}

func TestIncomeDetectorSuite(t *testing.T) {
	suite.Run(t, new(IncomeDetectorSuite))
}

const (
	subject  = id.RNOKPP("1234567890")
	payerOrg = id.EDRPOU("11112222")
)

func (s *IncomeDetectorSuite) SetupTest() {
	s.store = memory.New()
	s.store.AddPerson(subject, "Test Subject")
	s.store.AddOrganization(payerOrg, "Payer LLC", graph.OrgStatusRegistered, "240")

	var err error
	s.detector, err = NewIncomeDetector(s.store, DefaultIncomeConfig())
	s.Require().NoError(err)
}

func (s *IncomeDetectorSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *IncomeDetectorSuite) addIncome(year int, accrued, paid, taxCharged, taxTransferred float64, category string, org id.EDRPOU) {
	s.store.AddIncome(subject, graph.IncomeRecord{
		Accrued:        accrued,
		Paid:           paid,
		TaxCharged:     taxCharged,
		TaxTransferred: taxTransferred,
		CategoryCode:   category,
		PeriodYear:     year,
		OrgEDRPOU:      org,
	})
}

func (s *IncomeDetectorSuite) detect() []anomaly.Anomaly {
	anomalies, err := s.detector.Detect(context.Background(), subject)
	s.Require().NoError(err)
	return anomalies
}

func (s *IncomeDetectorSuite) single(anomalies []anomaly.Anomaly, code anomaly.Code) anomaly.Anomaly {
	matched := filterByCode(anomalies, code)
	s.Require().Len(matched, 1)
	return matched[0]
}

func filterByCode(anomalies []anomaly.Anomaly, code anomaly.Code) []anomaly.Anomaly {
	var out []anomaly.Anomaly
	for _, a := range anomalies {
		if a.Code == code {
			out = append(out, a)
		}
	}
	return out
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestNewIncomeDetector() {
	s.Run("nil gateway returns error", func() {
		_, err := NewIncomeDetector(nil, DefaultIncomeConfig())
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("invalid config returns error", func() {
		cfg := DefaultIncomeConfig()
		cfg.SpikeMultiplier = 1
		_, err := NewIncomeDetector(s.store, cfg)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Tax Mismatch Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestTaxMismatch() {
	s.Run("matching amounts produce no anomaly", func() {
		s.addIncome(2023, 50_000, 50_000, 9_000, 9_000, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeIncomeTaxMismatch))
	})

	s.Run("difference at the threshold does not fire", func() {
		s.addIncome(2023, 51_000, 50_000, 9_000, 9_000, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeIncomeTaxMismatch))
	})

	s.Run("moderate mismatch is medium", func() {
		s.addIncome(2023, 70_000, 50_000, 9_000, 9_000, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeTaxMismatch)
		s.Equal(anomaly.SeverityMedium, a.Severity)
		s.Equal(20_000.0, a.Details["total_unpaid_income"])
	})

	s.Run("unpaid income above 100000 escalates to high", func() {
		s.addIncome(2023, 200_000, 50_000, 36_000, 36_000, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeTaxMismatch)
		s.Equal(anomaly.SeverityHigh, a.Severity)
		s.Equal(150_000.0, a.Details["total_unpaid_income"])
	})

	s.Run("multiple mismatched records fold into one anomaly", func() {
		s.addIncome(2022, 60_000, 50_000, 9_000, 9_000, "101", payerOrg)
		s.addIncome(2023, 60_000, 50_000, 9_000, 2_000, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeTaxMismatch)
		s.Equal(10_000.0+10_000.0, a.Details["total_unpaid_income"])
		s.Equal(7_000.0, a.Details["total_unpaid_tax"])
	})
}

// =============================================================================
// Concentrated Income Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestConcentratedIncome() {
	s.Run("income exactly at the threshold does not fire", func() {
		s.addIncome(2023, 100_000, 100_000, 18_000, 18_000, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeConcentratedIncome))
	})

	s.Run("large income without employment is high", func() {
		s.addIncome(2023, 150_000, 150_000, 27_000, 27_000, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeConcentratedIncome)
		s.Equal(anomaly.SeverityHigh, a.Severity)
		s.Equal(payerOrg, a.Details["org_edrpou"])
	})

	s.Run("employment relation suppresses the anomaly", func() {
		s.store.AddEmployment(subject, payerOrg, graph.RoleDirector)
		s.addIncome(2023, 150_000, 150_000, 27_000, 27_000, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeConcentratedIncome))
	})

	s.Run("terminated organization escalates to critical", func() {
		dead := id.EDRPOU("99990000")
		s.store.AddOrganization(dead, "Ghost LLC", graph.OrgStatusTerminated, "240")
		s.addIncome(2023, 150_000, 150_000, 27_000, 27_000, "101", dead)
		a := s.single(s.detect(), anomaly.CodeConcentratedIncome)
		s.Equal(anomaly.SeverityCritical, a.Severity)
	})

	s.Run("in-liquidation organization escalates to critical", func() {
		dying := id.EDRPOU("99990001")
		s.store.AddOrganization(dying, "Sinking LLC", graph.OrgStatusInLiquidation, "240")
		s.addIncome(2023, 150_000, 150_000, 27_000, 27_000, "101", dying)
		a := s.single(s.detect(), anomaly.CodeConcentratedIncome)
		s.Equal(anomaly.SeverityCritical, a.Severity)
	})

	s.Run("one anomaly per organization", func() {
		other := id.EDRPOU("99990002")
		s.store.AddOrganization(other, "Other LLC", graph.OrgStatusRegistered, "240")
		s.addIncome(2022, 150_000, 150_000, 27_000, 27_000, "101", payerOrg)
		s.addIncome(2023, 200_000, 200_000, 36_000, 36_000, "101", other)
		s.Len(filterByCode(s.detect(), anomaly.CodeConcentratedIncome), 2)
	})
}

// =============================================================================
// Unusual Category Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestUnusualCategories() {
	s.Run("regular categories never fire", func() {
		s.addIncome(2023, 300_000, 300_000, 54_000, 54_000, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeUnusualIncomeCategory))
	})

	s.Run("sum at the threshold does not fire", func() {
		s.addIncome(2023, 50_000, 50_000, 0, 0, "178", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeUnusualIncomeCategory))
	})

	s.Run("moderate gift income is medium", func() {
		s.addIncome(2023, 60_000, 60_000, 0, 0, "178", payerOrg)
		a := s.single(s.detect(), anomaly.CodeUnusualIncomeCategory)
		s.Equal(anomaly.SeverityMedium, a.Severity)
	})

	s.Run("gift income above 200000 escalates to high", func() {
		s.addIncome(2022, 120_000, 120_000, 0, 0, "178", payerOrg)
		s.addIncome(2023, 100_000, 100_000, 0, 0, "186", payerOrg)
		a := s.single(s.detect(), anomaly.CodeUnusualIncomeCategory)
		s.Equal(anomaly.SeverityHigh, a.Severity)
		s.Equal(220_000.0, a.Details["total_amount"])
	})
}

// =============================================================================
// Income Spike Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestIncomeSpikes() {
	s.Run("single year never spikes", func() {
		s.addIncome(2023, 900_000, 900_000, 0, 0, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeIncomeSpike))
	})

	s.Run("negligible average suppresses the pattern", func() {
		s.addIncome(2020, 0, 0, 0, 0, "101", payerOrg)
		s.addIncome(2021, 0, 0, 0, 0, "101", payerOrg)
		s.addIncome(2022, 0, 0, 0, 0, "101", payerOrg)
		s.addIncome(2023, 36_000, 36_000, 0, 0, "101", payerOrg)
		s.Empty(filterByCode(s.detect(), anomaly.CodeIncomeSpike))
	})

	s.Run("spike below five times average is medium", func() {
		s.addIncome(2020, 10_000, 10_000, 0, 0, "101", payerOrg)
		s.addIncome(2021, 10_000, 10_000, 0, 0, "101", payerOrg)
		s.addIncome(2022, 10_000, 10_000, 0, 0, "101", payerOrg)
		s.addIncome(2023, 400_000, 400_000, 0, 0, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeSpike)
		s.Equal(anomaly.SeverityMedium, a.Severity)
		s.Equal(2023, a.Details["year"])
	})

	s.Run("ratio exactly five stays medium", func() {
		for year := 2018; year <= 2022; year++ {
			s.addIncome(year, 12_000, 12_000, 0, 0, "101", payerOrg)
		}
		s.addIncome(2023, 300_000, 300_000, 0, 0, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeSpike)
		s.Equal(anomaly.SeverityMedium, a.Severity)
		s.Equal(5.0, a.Details["ratio"])
	})

	s.Run("ratio above five is high", func() {
		for year := 2018; year <= 2022; year++ {
			s.addIncome(year, 10_000, 10_000, 0, 0, "101", payerOrg)
		}
		s.addIncome(2023, 300_000, 300_000, 0, 0, "101", payerOrg)
		a := s.single(s.detect(), anomaly.CodeIncomeSpike)
		s.Equal(anomaly.SeverityHigh, a.Severity)
	})
}

// =============================================================================
// Analyze Tests
// =============================================================================

func (s *IncomeDetectorSuite) TestAnalyze() {
	ctx := context.Background()

	s.Run("unknown subject is not found", func() {
		_, err := s.detector.Analyze(ctx, id.RNOKPP("0000000000"))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("clean subject scores zero", func() {
		s.addIncome(2023, 50_000, 50_000, 9_000, 9_000, "101", payerOrg)
		analysis, err := s.detector.Analyze(ctx, subject)
		s.NoError(err)
		s.Empty(analysis.Anomalies)
		s.Zero(analysis.RiskScore)
		s.Equal(50_000.0, analysis.TotalIncome)
		s.Equal(9_000.0, analysis.TotalTaxPaid)
		s.Equal("Test Subject", analysis.Name)
	})

	s.Run("risk score matches severity points", func() {
		s.addIncome(2023, 200_000, 50_000, 36_000, 36_000, "101", payerOrg)
		analysis, err := s.detector.Analyze(ctx, subject)
		s.NoError(err)
		s.Require().Len(analysis.Anomalies, 1)
		s.Equal(anomaly.SeverityHigh.Points(), analysis.RiskScore)
	})

	s.Run("detection is deterministic across runs", func() {
		s.addIncome(2022, 150_000, 150_000, 27_000, 27_000, "101", payerOrg)
		s.addIncome(2023, 200_000, 50_000, 36_000, 2_000, "101", payerOrg)
		first, err := s.detector.Detect(ctx, subject)
		s.Require().NoError(err)
		second, err := s.detector.Detect(ctx, subject)
		s.Require().NoError(err)
		s.Equal(first, second)
	})
}
