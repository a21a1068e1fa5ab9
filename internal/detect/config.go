package detect

import (
	dErrors "taxwatch/pkg/domain-errors"
)

// IncomeConfig carries the tunable thresholds for the income detectors.
// All comparisons against these values are exclusive.
type IncomeConfig struct {
	// MismatchThreshold is the minimum absolute accrued/paid (or
	// charged/transferred) difference before a record counts as mismatched.
	MismatchThreshold float64
	// ConcentrationThreshold is the minimum income from a single organization
	// without a registered employment relation before it is flagged.
	ConcentrationThreshold float64
	// UnusualCategoryThreshold is the minimum summed income across the
	// suspicious category codes before it is flagged.
	UnusualCategoryThreshold float64
	// SpikeMultiplier flags a year whose total exceeds the all-year average
	// by this factor.
	SpikeMultiplier float64
}

// DefaultIncomeConfig returns the production thresholds.
func DefaultIncomeConfig() IncomeConfig {
	return IncomeConfig{
		MismatchThreshold:        1_000,
		ConcentrationThreshold:   100_000,
		UnusualCategoryThreshold: 50_000,
		SpikeMultiplier:          3.0,
	}
}

func (c IncomeConfig) Validate() error {
	if c.MismatchThreshold < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "mismatch threshold must not be negative")
	}
	if c.ConcentrationThreshold < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "concentration threshold must not be negative")
	}
	if c.UnusualCategoryThreshold < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "unusual category threshold must not be negative")
	}
	if c.SpikeMultiplier <= 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "spike multiplier must be greater than 1")
	}
	return nil
}

// SurrogateConfig carries the tunable thresholds for the surrogate-wallet
// detectors.
type SurrogateConfig struct {
	// LowIncomeThreshold is the declared income below which an asset holder
	// is considered unable to afford the assets they hold.
	LowIncomeThreshold float64
	// ScanLimit bounds the population queries used by the proxy scan.
	ScanLimit int
}

// DefaultSurrogateConfig returns the production thresholds.
func DefaultSurrogateConfig() SurrogateConfig {
	return SurrogateConfig{
		LowIncomeThreshold: 100_000,
		ScanLimit:          100,
	}
}

func (c SurrogateConfig) Validate() error {
	if c.LowIncomeThreshold < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "low income threshold must not be negative")
	}
	if c.ScanLimit <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "scan limit must be positive")
	}
	return nil
}

// ConflictConfig configures the conflict-of-interest detector.
type ConflictConfig struct {
	// GovernmentLegalForms is the set of organizational-legal-form codes that
	// mark an organization as a government body.
	GovernmentLegalForms map[string]struct{}
}

// DefaultConflictConfig marks OLF code 070 (state organizations) as
// government service.
func DefaultConflictConfig() ConflictConfig {
	return ConflictConfig{
		GovernmentLegalForms: map[string]struct{}{"070": {}},
	}
}

func (c ConflictConfig) Validate() error {
	if len(c.GovernmentLegalForms) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one government legal form code is required")
	}
	return nil
}
