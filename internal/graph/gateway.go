// Package graph defines the read-only query surface of the registry graph
// store. Detectors and aggregators consume this one interface and never
// touch a store directly; implementations live in the neo4j and memory
// subpackages.
package graph

import (
	"context"

	id "taxwatch/pkg/domain"
)

// OrgStatus is the registration state code of an organization.
type OrgStatus string

const (
	OrgStatusUnknown       OrgStatus = "0"
	OrgStatusRegistered    OrgStatus = "1"
	OrgStatusInLiquidation OrgStatus = "2"
	OrgStatusTerminated    OrgStatus = "3"
)

// Dissolved reports whether the organization is terminated or winding down.
// Payments from such organizations are a classic laundering red flag.
func (s OrgStatus) Dissolved() bool {
	return s == OrgStatusTerminated || s == OrgStatusInLiquidation
}

// Text returns a human-readable status name.
func (s OrgStatus) Text() string {
	switch s {
	case OrgStatusRegistered:
		return "registered"
	case OrgStatusInLiquidation:
		return "in liquidation"
	case OrgStatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PropertyType categorizes owned property.
type PropertyType string

const (
	PropertyRealEstate PropertyType = "REAL_ESTATE"
	PropertyVehicle    PropertyType = "VEHICLE"
	PropertyOther      PropertyType = "OTHER"
)

// EmploymentRole is the kind of control a person holds over an organization.
type EmploymentRole string

const (
	RoleDirector EmploymentRole = "DIRECTOR"
	RoleFounder  EmploymentRole = "FOUNDER"
)

// FamilyRelation describes how a family neighbor relates to the subject.
type FamilyRelation string

const (
	RelationChild  FamilyRelation = "CHILD"
	RelationParent FamilyRelation = "PARENT"
	RelationSpouse FamilyRelation = "SPOUSE"
)

// IncomeRecord is one reported income event with its paying organization.
type IncomeRecord struct {
	IncomeID            string
	Accrued             float64
	Paid                float64
	TaxCharged          float64
	TaxTransferred      float64
	CategoryCode        string
	CategoryDescription string
	PeriodYear          int
	Period              string
	OrgEDRPOU           id.EDRPOU
	OrgName             string
	OrgStatus           OrgStatus
}

// IncomeSummary aggregates a person's reported income.
type IncomeSummary struct {
	TotalIncome float64
	TotalTax    float64
	SourceCount int
	RecordCount int
	Years       []int
}

// EmploymentRelation is a director or founder edge to an organization.
type EmploymentRelation struct {
	OrgEDRPOU     id.EDRPOU
	OrgName       string
	OrgStatus     OrgStatus
	LegalFormCode string
	Role          EmploymentRole
}

// Property is an owned asset.
type Property struct {
	PropertyID  string
	Type        PropertyType
	Description string
}

// PoAGrant is a power-of-attorney relation, optionally covering a property.
type PoAGrant struct {
	PoAID          string
	Grantor        id.RNOKPP
	Representative id.RNOKPP
	AttestedDate   string
	Property       *Property
}

// FamilyLink is an immediate family neighbor of a person.
type FamilyLink struct {
	RNOKPP   id.RNOKPP
	Relation FamilyRelation
}

// Subject is a member of the scan universe with its ordering key.
type Subject struct {
	RNOKPP      id.RNOKPP
	TotalIncome float64
}

// ProxyAssetLink is a population-scan row: a low-income property owner whose
// property is covered by a PoA naming a distinct representative.
type ProxyAssetLink struct {
	ProxyRNOKPP    id.RNOKPP
	ProxyName      string
	ProxyIncome    float64
	Property       Property
	OfficialRNOKPP id.RNOKPP
	OfficialName   string
	PoAID          string
}

// Gateway is the single read/traversal interface over the registry graph.
// Every operation is read-only and returns an empty collection, not an
// error, when the subject has no matching facts. Implementations must keep
// row order deterministic for identical graph state so detector output is
// reproducible.
type Gateway interface {
	// PersonName returns the display name of a person and whether the
	// person exists at all; an unknown subject is not an error.
	PersonName(ctx context.Context, rnokpp id.RNOKPP) (string, bool, error)

	IncomeRecords(ctx context.Context, rnokpp id.RNOKPP) ([]IncomeRecord, error)
	IncomeSummary(ctx context.Context, rnokpp id.RNOKPP) (IncomeSummary, error)
	// TotalPaidIncome sums a person's paid income; zero when no records.
	TotalPaidIncome(ctx context.Context, rnokpp id.RNOKPP) (float64, error)

	EmploymentRelations(ctx context.Context, rnokpp id.RNOKPP) ([]EmploymentRelation, error)

	OwnedProperties(ctx context.Context, rnokpp id.RNOKPP) ([]Property, error)
	PropertyOwners(ctx context.Context, propertyID string) ([]id.RNOKPP, error)

	PoAAsRepresentative(ctx context.Context, rnokpp id.RNOKPP) ([]PoAGrant, error)
	PoAAsGrantor(ctx context.Context, rnokpp id.RNOKPP) ([]PoAGrant, error)

	FamilyLinks(ctx context.Context, rnokpp id.RNOKPP) ([]FamilyLink, error)

	// SubjectsWithIncome returns up to limit persons ordered by total paid
	// income descending; the scan universe for income analysis.
	SubjectsWithIncome(ctx context.Context, limit int) ([]Subject, error)
	// PoAConnectedPersons returns up to limit persons that appear on either
	// side of a PoA; the scan universe for surrogate-wallet analysis.
	PoAConnectedPersons(ctx context.Context, limit int) ([]id.RNOKPP, error)
	// LowIncomePropertyOwners returns up to limit proxy/asset/official rows
	// where the owner's summed income is below threshold (missing income
	// counts as zero) and the PoA representative is a different person.
	LowIncomePropertyOwners(ctx context.Context, threshold float64, limit int) ([]ProxyAssetLink, error)
}
