// Package neo4j implements graph.Gateway with named Cypher queries against
// the registry graph. All sessions are read-mode; the analysis core never
// mutates the store.
package neo4j

import (
	"context"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"taxwatch/internal/graph"
	platformcfg "taxwatch/internal/platform/config"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// Store is a Neo4j-backed gateway. It owns the driver and its pool; callers
// must Close it when done.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New connects to the store and verifies connectivity so a misconfigured
// address fails before any subject is processed.
func New(ctx context.Context, cfg platformcfg.Neo4j) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *config.Config) {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		},
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid neo4j configuration")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "graph store unreachable")
	}
	return &Store{driver: driver, database: cfg.Database}, nil
}

// Close releases the underlying driver pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) read(ctx context.Context, query string, params map[string]any, collect func(*neo4j.Record)) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "graph query failed")
	}
	for result.Next(ctx) {
		collect(result.Record())
	}
	return dErrors.Wrap(result.Err(), dErrors.CodeUnavailable, "graph result stream failed")
}

func (s *Store) PersonName(ctx context.Context, rnokpp id.RNOKPP) (string, bool, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})
		RETURN p.last_name + ' ' + p.first_name + ' ' + coalesce(p.middle_name, '') AS full_name`

	var name string
	var found bool
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		name = asString(rec, "full_name")
		found = true
	})
	return name, found, err
}

func (s *Store) IncomeRecords(ctx context.Context, rnokpp id.RNOKPP) ([]graph.IncomeRecord, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})-[:EARNED_INCOME]->(i:IncomeRecord)-[:PAID_BY]->(o:Organization)
		RETURN
			i.income_id AS income_id,
			i.income_accrued AS accrued,
			i.income_paid AS paid,
			i.tax_charged AS tax_charged,
			i.tax_transferred AS tax_transferred,
			i.income_type_code AS category_code,
			i.income_type_description AS category_description,
			i.period_year AS year,
			i.period_quarter_month AS period,
			o.edrpou AS org_edrpou,
			o.name AS org_name,
			o.state AS org_state
		ORDER BY i.period_year, i.income_id`

	var records []graph.IncomeRecord
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		records = append(records, graph.IncomeRecord{
			IncomeID:            asString(rec, "income_id"),
			Accrued:             asFloat(rec, "accrued"),
			Paid:                asFloat(rec, "paid"),
			TaxCharged:          asFloat(rec, "tax_charged"),
			TaxTransferred:      asFloat(rec, "tax_transferred"),
			CategoryCode:        asString(rec, "category_code"),
			CategoryDescription: asString(rec, "category_description"),
			PeriodYear:          asInt(rec, "year"),
			Period:              asString(rec, "period"),
			OrgEDRPOU:           id.EDRPOU(asString(rec, "org_edrpou")),
			OrgName:             asString(rec, "org_name"),
			OrgStatus:           orgStatus(asString(rec, "org_state")),
		})
	})
	return records, err
}

func (s *Store) IncomeSummary(ctx context.Context, rnokpp id.RNOKPP) (graph.IncomeSummary, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})-[:EARNED_INCOME]->(i:IncomeRecord)-[:PAID_BY]->(o:Organization)
		RETURN
			sum(i.income_paid) AS total_income,
			sum(i.tax_transferred) AS total_tax,
			count(DISTINCT o) AS source_count,
			count(i) AS record_count,
			collect(DISTINCT i.period_year) AS years`

	var summary graph.IncomeSummary
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		summary.TotalIncome = asFloat(rec, "total_income")
		summary.TotalTax = asFloat(rec, "total_tax")
		summary.SourceCount = asInt(rec, "source_count")
		summary.RecordCount = asInt(rec, "record_count")
		summary.Years = asIntSlice(rec, "years")
	})
	sort.Ints(summary.Years)
	return summary, err
}

func (s *Store) TotalPaidIncome(ctx context.Context, rnokpp id.RNOKPP) (float64, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})-[:EARNED_INCOME]->(i:IncomeRecord)
		RETURN sum(i.income_paid) AS total`

	var total float64
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		total = asFloat(rec, "total")
	})
	return total, err
}

func (s *Store) EmploymentRelations(ctx context.Context, rnokpp id.RNOKPP) ([]graph.EmploymentRelation, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})-[r:DIRECTOR_OF|FOUNDER_OF]->(o:Organization)
		RETURN
			type(r) AS rel_type,
			o.edrpou AS edrpou,
			o.name AS name,
			o.state AS state,
			o.olf_code AS olf_code
		ORDER BY o.edrpou, rel_type`

	var relations []graph.EmploymentRelation
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		role := graph.RoleDirector
		if asString(rec, "rel_type") == "FOUNDER_OF" {
			role = graph.RoleFounder
		}
		relations = append(relations, graph.EmploymentRelation{
			OrgEDRPOU:     id.EDRPOU(asString(rec, "edrpou")),
			OrgName:       asString(rec, "name"),
			OrgStatus:     orgStatus(asString(rec, "state")),
			LegalFormCode: asString(rec, "olf_code"),
			Role:          role,
		})
	})
	return relations, err
}

func (s *Store) OwnedProperties(ctx context.Context, rnokpp id.RNOKPP) ([]graph.Property, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})-[:OWNS]->(prop:Property)
		RETURN prop.property_id AS property_id, prop.property_type AS property_type, prop.description AS description
		ORDER BY prop.property_id`

	var properties []graph.Property
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		properties = append(properties, recordProperty(rec))
	})
	return properties, err
}

func (s *Store) PropertyOwners(ctx context.Context, propertyID string) ([]id.RNOKPP, error) {
	const query = `
		MATCH (p:Person)-[:OWNS]->(prop:Property {property_id: $property_id})
		RETURN p.rnokpp AS rnokpp
		ORDER BY p.rnokpp`

	var owners []id.RNOKPP
	err := s.read(ctx, query, map[string]any{"property_id": propertyID}, func(rec *neo4j.Record) {
		owners = append(owners, id.RNOKPP(asString(rec, "rnokpp")))
	})
	return owners, err
}

func (s *Store) PoAAsRepresentative(ctx context.Context, rnokpp id.RNOKPP) ([]graph.PoAGrant, error) {
	return s.poaGrants(ctx, rnokpp, "HAS_REPRESENTATIVE")
}

func (s *Store) PoAAsGrantor(ctx context.Context, rnokpp id.RNOKPP) ([]graph.PoAGrant, error) {
	return s.poaGrants(ctx, rnokpp, "HAS_GRANTOR")
}

func (s *Store) poaGrants(ctx context.Context, rnokpp id.RNOKPP, side string) ([]graph.PoAGrant, error) {
	// side is one of two fixed relationship names, never user input.
	query := `
		MATCH (poa:PowerOfAttorney)-[:` + side + `]->(p:Person {rnokpp: $rnokpp})
		MATCH (poa)-[:HAS_GRANTOR]->(grantor:Person)
		MATCH (poa)-[:HAS_REPRESENTATIVE]->(rep:Person)
		OPTIONAL MATCH (poa)-[:HAS_PROPERTY]->(prop:Property)
		RETURN
			poa.poa_id AS poa_id,
			poa.attested_date AS attested_date,
			grantor.rnokpp AS grantor,
			rep.rnokpp AS representative,
			prop.property_id AS property_id,
			prop.property_type AS property_type,
			prop.description AS description
		ORDER BY poa.poa_id`

	var grants []graph.PoAGrant
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		grant := graph.PoAGrant{
			PoAID:          asString(rec, "poa_id"),
			AttestedDate:   asString(rec, "attested_date"),
			Grantor:        id.RNOKPP(asString(rec, "grantor")),
			Representative: id.RNOKPP(asString(rec, "representative")),
		}
		if pid := asString(rec, "property_id"); pid != "" {
			prop := recordProperty(rec)
			grant.Property = &prop
		}
		grants = append(grants, grant)
	})
	return grants, err
}

func (s *Store) FamilyLinks(ctx context.Context, rnokpp id.RNOKPP) ([]graph.FamilyLink, error) {
	const query = `
		MATCH (p:Person {rnokpp: $rnokpp})
		OPTIONAL MATCH (p)-[:CHILD_OF]->(parent:Person)
		OPTIONAL MATCH (child:Person)-[:CHILD_OF]->(p)
		OPTIONAL MATCH (p)-[:SPOUSE_OF]-(spouse:Person)
		RETURN
			collect(DISTINCT parent.rnokpp) AS parents,
			collect(DISTINCT child.rnokpp) AS children,
			collect(DISTINCT spouse.rnokpp) AS spouses`

	var links []graph.FamilyLink
	err := s.read(ctx, query, map[string]any{"rnokpp": rnokpp.String()}, func(rec *neo4j.Record) {
		for _, v := range asStringSlice(rec, "parents") {
			links = append(links, graph.FamilyLink{RNOKPP: id.RNOKPP(v), Relation: graph.RelationParent})
		}
		for _, v := range asStringSlice(rec, "children") {
			links = append(links, graph.FamilyLink{RNOKPP: id.RNOKPP(v), Relation: graph.RelationChild})
		}
		for _, v := range asStringSlice(rec, "spouses") {
			links = append(links, graph.FamilyLink{RNOKPP: id.RNOKPP(v), Relation: graph.RelationSpouse})
		}
	})
	return links, err
}

func (s *Store) SubjectsWithIncome(ctx context.Context, limit int) ([]graph.Subject, error) {
	const query = `
		MATCH (p:Person)-[:EARNED_INCOME]->(i:IncomeRecord)
		WITH p, sum(i.income_paid) AS total_income
		WHERE total_income > 0
		RETURN p.rnokpp AS rnokpp, total_income
		ORDER BY total_income DESC, p.rnokpp
		LIMIT $limit`

	var subjects []graph.Subject
	err := s.read(ctx, query, map[string]any{"limit": limit}, func(rec *neo4j.Record) {
		subjects = append(subjects, graph.Subject{
			RNOKPP:      id.RNOKPP(asString(rec, "rnokpp")),
			TotalIncome: asFloat(rec, "total_income"),
		})
	})
	return subjects, err
}

func (s *Store) PoAConnectedPersons(ctx context.Context, limit int) ([]id.RNOKPP, error) {
	const query = `
		MATCH (p:Person)
		WHERE (p)<-[:HAS_GRANTOR|HAS_REPRESENTATIVE]-(:PowerOfAttorney)
		RETURN DISTINCT p.rnokpp AS rnokpp
		ORDER BY rnokpp
		LIMIT $limit`

	var persons []id.RNOKPP
	err := s.read(ctx, query, map[string]any{"limit": limit}, func(rec *neo4j.Record) {
		persons = append(persons, id.RNOKPP(asString(rec, "rnokpp")))
	})
	return persons, err
}

func (s *Store) LowIncomePropertyOwners(ctx context.Context, threshold float64, limit int) ([]graph.ProxyAssetLink, error) {
	const query = `
		MATCH (proxy:Person)-[:OWNS]->(asset:Property)
		OPTIONAL MATCH (proxy)-[:EARNED_INCOME]->(inc:IncomeRecord)
		WITH proxy, asset, sum(inc.income_paid) AS total_income
		WHERE total_income < $threshold OR total_income IS NULL
		MATCH (poa:PowerOfAttorney)-[:HAS_PROPERTY]->(asset)
		MATCH (poa)-[:HAS_REPRESENTATIVE]->(official:Person)
		WHERE official.rnokpp <> proxy.rnokpp
		RETURN
			official.rnokpp AS official_rnokpp,
			official.last_name + ' ' + official.first_name + ' ' + coalesce(official.middle_name, '') AS official_name,
			proxy.rnokpp AS proxy_rnokpp,
			proxy.last_name + ' ' + proxy.first_name + ' ' + coalesce(proxy.middle_name, '') AS proxy_name,
			total_income AS proxy_income,
			poa.poa_id AS poa_id,
			asset.property_id AS property_id,
			asset.property_type AS property_type,
			asset.description AS description
		ORDER BY proxy.rnokpp, asset.property_id
		LIMIT $limit`

	var links []graph.ProxyAssetLink
	params := map[string]any{"threshold": threshold, "limit": limit}
	err := s.read(ctx, query, params, func(rec *neo4j.Record) {
		links = append(links, graph.ProxyAssetLink{
			ProxyRNOKPP:    id.RNOKPP(asString(rec, "proxy_rnokpp")),
			ProxyName:      asString(rec, "proxy_name"),
			ProxyIncome:    asFloat(rec, "proxy_income"),
			Property:       recordProperty(rec),
			OfficialRNOKPP: id.RNOKPP(asString(rec, "official_rnokpp")),
			OfficialName:   asString(rec, "official_name"),
			PoAID:          asString(rec, "poa_id"),
		})
	})
	return links, err
}

var _ graph.Gateway = (*Store)(nil)

// ---------------------------------------------------------------------------
// Record helpers
// ---------------------------------------------------------------------------

func recordProperty(rec *neo4j.Record) graph.Property {
	return graph.Property{
		PropertyID:  asString(rec, "property_id"),
		Type:        propertyType(asString(rec, "property_type")),
		Description: asString(rec, "description"),
	}
}

func orgStatus(state string) graph.OrgStatus {
	switch graph.OrgStatus(state) {
	case graph.OrgStatusRegistered, graph.OrgStatusInLiquidation, graph.OrgStatusTerminated:
		return graph.OrgStatus(state)
	default:
		return graph.OrgStatusUnknown
	}
}

func propertyType(raw string) graph.PropertyType {
	switch graph.PropertyType(raw) {
	case graph.PropertyRealEstate, graph.PropertyVehicle:
		return graph.PropertyType(raw)
	default:
		return graph.PropertyOther
	}
}

func asString(rec *neo4j.Record, key string) string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func asFloat(rec *neo4j.Record, key string) float64 {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func asInt(rec *neo4j.Record, key string) int {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func asIntSlice(rec *neo4j.Record, key string) []int {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return nil
	}
	raw, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if n, ok := v.(int64); ok {
			out = append(out, int(n))
		}
	}
	return out
}

func asStringSlice(rec *neo4j.Record, key string) []string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return nil
	}
	raw, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
