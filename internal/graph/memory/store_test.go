package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
)

func TestSubjectsWithIncome(t *testing.T) {
	ctx := context.Background()
	store := New()
	a := id.RNOKPP("1111111111")
	b := id.RNOKPP("2222222222")
	c := id.RNOKPP("3333333333")
	store.AddPerson(a, "A")
	store.AddPerson(b, "B")
	store.AddPerson(c, "C")
	store.AddIncome(a, graph.IncomeRecord{Paid: 50_000})
	store.AddIncome(b, graph.IncomeRecord{Paid: 200_000})
	store.AddIncome(c, graph.IncomeRecord{Paid: 200_000})

	t.Run("orders by income descending with id tie-break", func(t *testing.T) {
		subjects, err := store.SubjectsWithIncome(ctx, 10)
		require.NoError(t, err)
		require.Len(t, subjects, 3)
		assert.Equal(t, b, subjects[0].RNOKPP)
		assert.Equal(t, c, subjects[1].RNOKPP)
		assert.Equal(t, a, subjects[2].RNOKPP)
	})

	t.Run("honors the limit", func(t *testing.T) {
		subjects, err := store.SubjectsWithIncome(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, subjects, 2)
	})
}

func TestPoAConnectedPersons(t *testing.T) {
	ctx := context.Background()
	store := New()
	grantor := id.RNOKPP("1111111111")
	rep := id.RNOKPP("2222222222")
	store.AddPoA("poa-1", grantor, rep, "", "2023-01-01")
	store.AddPoA("poa-2", grantor, rep, "", "2023-02-01")

	persons, err := store.PoAConnectedPersons(ctx, 10)
	require.NoError(t, err)
	// both sides, each person once, sorted
	assert.Equal(t, []id.RNOKPP{grantor, rep}, persons)
}

func TestEmptyResultsAreNotErrors(t *testing.T) {
	ctx := context.Background()
	store := New()
	nobody := id.RNOKPP("9999999999")

	records, err := store.IncomeRecords(ctx, nobody)
	require.NoError(t, err)
	assert.Empty(t, records)

	properties, err := store.OwnedProperties(ctx, nobody)
	require.NoError(t, err)
	assert.Empty(t, properties)

	links, err := store.FamilyLinks(ctx, nobody)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, found, err := store.PersonName(ctx, nobody)
	require.NoError(t, err)
	assert.False(t, found)
}
