// Package memory implements graph.Gateway over plain maps. It backs unit
// tests and local experiments; fixtures are built through the Add/Link
// helpers. Reads are deterministic: rows come back in insertion order (or
// sorted where the contract says so), matching what the Cypher adapter
// produces with its ORDER BY clauses.
package memory

import (
	"context"
	"sort"
	"sync"

	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
)

type person struct {
	rnokpp id.RNOKPP
	name   string
}

type organization struct {
	edrpou        id.EDRPOU
	name          string
	status        graph.OrgStatus
	legalFormCode string
}

// Store is an in-memory registry graph.
type Store struct {
	mu sync.RWMutex

	persons     map[id.RNOKPP]*person
	personOrder []id.RNOKPP

	orgs map[id.EDRPOU]*organization

	incomes    map[id.RNOKPP][]graph.IncomeRecord
	employment map[id.RNOKPP][]graph.EmploymentRelation

	properties    map[string]graph.Property
	ownedBy       map[id.RNOKPP][]string
	propertyOwner map[string][]id.RNOKPP

	poas []graph.PoAGrant

	family map[id.RNOKPP][]graph.FamilyLink
}

// New creates an empty in-memory graph.
func New() *Store {
	return &Store{
		persons:       make(map[id.RNOKPP]*person),
		orgs:          make(map[id.EDRPOU]*organization),
		incomes:       make(map[id.RNOKPP][]graph.IncomeRecord),
		employment:    make(map[id.RNOKPP][]graph.EmploymentRelation),
		properties:    make(map[string]graph.Property),
		ownedBy:       make(map[id.RNOKPP][]string),
		propertyOwner: make(map[string][]id.RNOKPP),
		family:        make(map[id.RNOKPP][]graph.FamilyLink),
	}
}

// ---------------------------------------------------------------------------
// Fixture builders
// ---------------------------------------------------------------------------

// AddPerson registers a person node.
func (s *Store) AddPerson(rnokpp id.RNOKPP, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[rnokpp]; !ok {
		s.personOrder = append(s.personOrder, rnokpp)
	}
	s.persons[rnokpp] = &person{rnokpp: rnokpp, name: name}
}

// AddOrganization registers an organization node.
func (s *Store) AddOrganization(edrpou id.EDRPOU, name string, status graph.OrgStatus, legalFormCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[edrpou] = &organization{edrpou: edrpou, name: name, status: status, legalFormCode: legalFormCode}
}

// AddIncome attaches an income record to a person. Organization name and
// status are resolved at read time so fixtures stay terse.
func (s *Store) AddIncome(rnokpp id.RNOKPP, rec graph.IncomeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes[rnokpp] = append(s.incomes[rnokpp], rec)
}

// AddEmployment attaches a director or founder edge.
func (s *Store) AddEmployment(rnokpp id.RNOKPP, orgEDRPOU id.EDRPOU, role graph.EmploymentRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := graph.EmploymentRelation{OrgEDRPOU: orgEDRPOU, Role: role}
	if org, ok := s.orgs[orgEDRPOU]; ok {
		rel.OrgName = org.name
		rel.OrgStatus = org.status
		rel.LegalFormCode = org.legalFormCode
	}
	s.employment[rnokpp] = append(s.employment[rnokpp], rel)
}

// AddProperty registers a property owned by the given person.
func (s *Store) AddProperty(owner id.RNOKPP, prop graph.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[prop.PropertyID] = prop
	s.ownedBy[owner] = append(s.ownedBy[owner], prop.PropertyID)
	s.propertyOwner[prop.PropertyID] = append(s.propertyOwner[prop.PropertyID], owner)
}

// AddPoA registers a power-of-attorney grant. propertyID may be empty for
// grants that do not cover a specific asset.
func (s *Store) AddPoA(poaID string, grantor, representative id.RNOKPP, propertyID, attestedDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant := graph.PoAGrant{
		PoAID:          poaID,
		Grantor:        grantor,
		Representative: representative,
		AttestedDate:   attestedDate,
	}
	if propertyID != "" {
		if prop, ok := s.properties[propertyID]; ok {
			grant.Property = &prop
		} else {
			grant.Property = &graph.Property{PropertyID: propertyID, Type: graph.PropertyOther}
		}
	}
	s.poas = append(s.poas, grant)
}

// LinkParentChild records a child-of edge in both traversal directions.
func (s *Store) LinkParentChild(parent, child id.RNOKPP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.family[child] = append(s.family[child], graph.FamilyLink{RNOKPP: parent, Relation: graph.RelationParent})
	s.family[parent] = append(s.family[parent], graph.FamilyLink{RNOKPP: child, Relation: graph.RelationChild})
}

// LinkSpouses records a symmetric spouse-of edge.
func (s *Store) LinkSpouses(a, b id.RNOKPP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.family[a] = append(s.family[a], graph.FamilyLink{RNOKPP: b, Relation: graph.RelationSpouse})
	s.family[b] = append(s.family[b], graph.FamilyLink{RNOKPP: a, Relation: graph.RelationSpouse})
}

// ---------------------------------------------------------------------------
// graph.Gateway
// ---------------------------------------------------------------------------

func (s *Store) PersonName(_ context.Context, rnokpp id.RNOKPP) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[rnokpp]
	if !ok {
		return "", false, nil
	}
	return p.name, true, nil
}

func (s *Store) IncomeRecords(_ context.Context, rnokpp id.RNOKPP) ([]graph.IncomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.incomes[rnokpp]
	out := make([]graph.IncomeRecord, len(recs))
	copy(out, recs)
	for i := range out {
		s.resolveOrg(&out[i])
	}
	return out, nil
}

func (s *Store) resolveOrg(rec *graph.IncomeRecord) {
	if org, ok := s.orgs[rec.OrgEDRPOU]; ok {
		if rec.OrgName == "" {
			rec.OrgName = org.name
		}
		if rec.OrgStatus == "" {
			rec.OrgStatus = org.status
		}
	}
	if rec.OrgStatus == "" {
		rec.OrgStatus = graph.OrgStatusUnknown
	}
}

func (s *Store) IncomeSummary(_ context.Context, rnokpp id.RNOKPP) (graph.IncomeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary graph.IncomeSummary
	sources := make(map[id.EDRPOU]struct{})
	years := make(map[int]struct{})
	for _, rec := range s.incomes[rnokpp] {
		summary.TotalIncome += rec.Paid
		summary.TotalTax += rec.TaxTransferred
		summary.RecordCount++
		sources[rec.OrgEDRPOU] = struct{}{}
		years[rec.PeriodYear] = struct{}{}
	}
	summary.SourceCount = len(sources)
	for y := range years {
		summary.Years = append(summary.Years, y)
	}
	sort.Ints(summary.Years)
	return summary, nil
}

func (s *Store) TotalPaidIncome(_ context.Context, rnokpp id.RNOKPP) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, rec := range s.incomes[rnokpp] {
		total += rec.Paid
	}
	return total, nil
}

func (s *Store) EmploymentRelations(_ context.Context, rnokpp id.RNOKPP) ([]graph.EmploymentRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rels := s.employment[rnokpp]
	out := make([]graph.EmploymentRelation, len(rels))
	copy(out, rels)
	return out, nil
}

func (s *Store) OwnedProperties(_ context.Context, rnokpp id.RNOKPP) ([]graph.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.ownedBy[rnokpp]
	out := make([]graph.Property, 0, len(ids))
	for _, pid := range ids {
		out = append(out, s.properties[pid])
	}
	return out, nil
}

func (s *Store) PropertyOwners(_ context.Context, propertyID string) ([]id.RNOKPP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := s.propertyOwner[propertyID]
	out := make([]id.RNOKPP, len(owners))
	copy(out, owners)
	return out, nil
}

func (s *Store) PoAAsRepresentative(_ context.Context, rnokpp id.RNOKPP) ([]graph.PoAGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.PoAGrant
	for _, g := range s.poas {
		if g.Representative == rnokpp {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) PoAAsGrantor(_ context.Context, rnokpp id.RNOKPP) ([]graph.PoAGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.PoAGrant
	for _, g := range s.poas {
		if g.Grantor == rnokpp {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) FamilyLinks(_ context.Context, rnokpp id.RNOKPP) ([]graph.FamilyLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := s.family[rnokpp]
	out := make([]graph.FamilyLink, len(links))
	copy(out, links)
	return out, nil
}

func (s *Store) SubjectsWithIncome(_ context.Context, limit int) ([]graph.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subjects []graph.Subject
	for _, rnokpp := range s.personOrder {
		var total float64
		for _, rec := range s.incomes[rnokpp] {
			total += rec.Paid
		}
		if total > 0 {
			subjects = append(subjects, graph.Subject{RNOKPP: rnokpp, TotalIncome: total})
		}
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		if subjects[i].TotalIncome != subjects[j].TotalIncome {
			return subjects[i].TotalIncome > subjects[j].TotalIncome
		}
		return subjects[i].RNOKPP < subjects[j].RNOKPP
	})
	if limit > 0 && len(subjects) > limit {
		subjects = subjects[:limit]
	}
	return subjects, nil
}

func (s *Store) PoAConnectedPersons(_ context.Context, limit int) ([]id.RNOKPP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[id.RNOKPP]struct{})
	var out []id.RNOKPP
	for _, g := range s.poas {
		for _, rnokpp := range []id.RNOKPP{g.Grantor, g.Representative} {
			if rnokpp.IsZero() {
				continue
			}
			if _, ok := seen[rnokpp]; !ok {
				seen[rnokpp] = struct{}{}
				out = append(out, rnokpp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LowIncomePropertyOwners(_ context.Context, threshold float64, limit int) ([]graph.ProxyAssetLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.ProxyAssetLink
	for _, g := range s.poas {
		if g.Property == nil {
			continue
		}
		for _, owner := range s.propertyOwner[g.Property.PropertyID] {
			if owner == g.Representative {
				continue
			}
			var income float64
			for _, rec := range s.incomes[owner] {
				income += rec.Paid
			}
			if income >= threshold {
				continue
			}
			link := graph.ProxyAssetLink{
				ProxyRNOKPP:    owner,
				ProxyIncome:    income,
				Property:       *g.Property,
				OfficialRNOKPP: g.Representative,
				PoAID:          g.PoAID,
			}
			if p, ok := s.persons[owner]; ok {
				link.ProxyName = p.name
			}
			if p, ok := s.persons[g.Representative]; ok {
				link.OfficialName = p.name
			}
			out = append(out, link)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

var _ graph.Gateway = (*Store)(nil)
