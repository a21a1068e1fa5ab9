// Package domain holds the typed identifiers shared across the module.
// Parsing happens once at trust boundaries (CLI flags, store rows); the rest
// of the code passes the typed values around and the compiler prevents a
// person id from being used where an organization code is expected.
package domain

import (
	dErrors "taxwatch/pkg/domain-errors"
)

// RNOKPP is the stable government-issued tax identifier of a person.
type RNOKPP string

// EDRPOU is the stable registration code of an organization.
type EDRPOU string

// String returns the raw identifier value.
func (r RNOKPP) String() string { return string(r) }

// IsZero reports whether the identifier is unset.
func (r RNOKPP) IsZero() bool { return r == "" }

func (e EDRPOU) String() string { return string(e) }

func (e EDRPOU) IsZero() bool { return e == "" }

// ParseRNOKPP validates and types a raw person identifier. RNOKPP values are
// exactly ten decimal digits.
func ParseRNOKPP(s string) (RNOKPP, error) {
	if err := validateDigits(s, 10, "rnokpp"); err != nil {
		return "", err
	}
	return RNOKPP(s), nil
}

// ParseEDRPOU validates and types a raw organization code. EDRPOU values are
// exactly eight decimal digits.
func ParseEDRPOU(s string) (EDRPOU, error) {
	if err := validateDigits(s, 8, "edrpou"); err != nil {
		return "", err
	}
	return EDRPOU(s), nil
}

func validateDigits(s string, length int, field string) error {
	if s == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	if len(s) != length {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s must be %d digits", field, length)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return dErrors.Newf(dErrors.CodeInvalidInput, "%s must contain only digits", field)
		}
	}
	return nil
}
