//go:build integration

package neo4j

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxwatch/internal/graph"
	platformcfg "taxwatch/internal/platform/config"
	id "taxwatch/pkg/domain"
	"taxwatch/pkg/testutil/containers"
)

const seedCypher = `
CREATE (p:Person {rnokpp: '1234567890', last_name: 'Shevchenko', first_name: 'Taras', middle_name: 'Hryhorovych'})
CREATE (proxy:Person {rnokpp: '5556667778', last_name: 'Sydorenko', first_name: 'Olha', middle_name: ''})
CREATE (o:Organization {edrpou: '11112222', name: 'Payer LLC', state: '1', olf_code: '240'})
CREATE (i1:IncomeRecord {income_id: 'inc-1', income_accrued: 120000.0, income_paid: 120000.0,
  tax_charged: 21600.0, tax_transferred: 21600.0, income_type_code: '101',
  income_type_description: 'salary', period_year: 2022, period_quarter_month: 'Q4'})
CREATE (i2:IncomeRecord {income_id: 'inc-2', income_accrued: 150000.0, income_paid: 100000.0,
  tax_charged: 27000.0, tax_transferred: 5000.0, income_type_code: '101',
  income_type_description: 'salary', period_year: 2023, period_quarter_month: 'Q1'})
CREATE (prop:Property {property_id: 'prop-1', property_type: 'REAL_ESTATE', description: 'apartment'})
CREATE (poa:PowerOfAttorney {poa_id: 'poa-1', attested_date: '2023-04-01'})
CREATE (p)-[:EARNED_INCOME]->(i1)
CREATE (p)-[:EARNED_INCOME]->(i2)
CREATE (i1)-[:PAID_BY]->(o)
CREATE (i2)-[:PAID_BY]->(o)
CREATE (p)-[:DIRECTOR_OF]->(o)
CREATE (proxy)-[:OWNS]->(prop)
CREATE (poa)-[:HAS_GRANTOR]->(proxy)
CREATE (poa)-[:HAS_REPRESENTATIVE]->(p)
CREATE (poa)-[:HAS_PROPERTY]->(prop)
CREATE (proxy)-[:CHILD_OF]->(p)
`

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container := containers.NewNeo4jContainer(t)

	store, err := New(ctx, platformcfg.Neo4j{
		URI:      container.URI,
		User:     "neo4j",
		Password: container.Password,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	session := store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	_, err = session.Run(ctx, seedCypher, nil)
	require.NoError(t, err)
	require.NoError(t, session.Close(ctx))

	subject := id.RNOKPP("1234567890")
	proxy := id.RNOKPP("5556667778")

	t.Run("PersonName", func(t *testing.T) {
		name, found, err := store.PersonName(ctx, subject)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Contains(t, name, "Shevchenko")

		_, found, err = store.PersonName(ctx, id.RNOKPP("0000000000"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("IncomeRecords", func(t *testing.T) {
		records, err := store.IncomeRecords(ctx, subject)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2022, records[0].PeriodYear)
		assert.Equal(t, id.EDRPOU("11112222"), records[0].OrgEDRPOU)
		assert.Equal(t, graph.OrgStatusRegistered, records[0].OrgStatus)
		assert.Equal(t, 150_000.0, records[1].Accrued)
	})

	t.Run("IncomeSummary", func(t *testing.T) {
		summary, err := store.IncomeSummary(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, 220_000.0, summary.TotalIncome)
		assert.Equal(t, 26_600.0, summary.TotalTax)
		assert.Equal(t, 1, summary.SourceCount)
		assert.Equal(t, 2, summary.RecordCount)
		assert.Equal(t, []int{2022, 2023}, summary.Years)
	})

	t.Run("TotalPaidIncome", func(t *testing.T) {
		total, err := store.TotalPaidIncome(ctx, proxy)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("EmploymentRelations", func(t *testing.T) {
		relations, err := store.EmploymentRelations(ctx, subject)
		require.NoError(t, err)
		require.Len(t, relations, 1)
		assert.Equal(t, graph.RoleDirector, relations[0].Role)
		assert.Equal(t, "240", relations[0].LegalFormCode)
	})

	t.Run("Properties", func(t *testing.T) {
		properties, err := store.OwnedProperties(ctx, proxy)
		require.NoError(t, err)
		require.Len(t, properties, 1)
		assert.Equal(t, graph.PropertyRealEstate, properties[0].Type)

		owners, err := store.PropertyOwners(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, []id.RNOKPP{proxy}, owners)
	})

	t.Run("PoA", func(t *testing.T) {
		asRep, err := store.PoAAsRepresentative(ctx, subject)
		require.NoError(t, err)
		require.Len(t, asRep, 1)
		assert.Equal(t, proxy, asRep[0].Grantor)
		require.NotNil(t, asRep[0].Property)
		assert.Equal(t, "prop-1", asRep[0].Property.PropertyID)

		asGrantor, err := store.PoAAsGrantor(ctx, proxy)
		require.NoError(t, err)
		require.Len(t, asGrantor, 1)
		assert.Equal(t, subject, asGrantor[0].Representative)
	})

	t.Run("FamilyLinks", func(t *testing.T) {
		links, err := store.FamilyLinks(ctx, subject)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, proxy, links[0].RNOKPP)
		assert.Equal(t, graph.RelationChild, links[0].Relation)
	})

	t.Run("Universes", func(t *testing.T) {
		subjects, err := store.SubjectsWithIncome(ctx, 10)
		require.NoError(t, err)
		require.Len(t, subjects, 1)
		assert.Equal(t, subject, subjects[0].RNOKPP)

		persons, err := store.PoAConnectedPersons(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []id.RNOKPP{subject, proxy}, persons)
	})

	t.Run("LowIncomePropertyOwners", func(t *testing.T) {
		links, err := store.LowIncomePropertyOwners(ctx, 100_000, 10)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, proxy, links[0].ProxyRNOKPP)
		assert.Equal(t, subject, links[0].OfficialRNOKPP)
		assert.Equal(t, "prop-1", links[0].Property.PropertyID)
	})
}
