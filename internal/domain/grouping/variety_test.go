package grouping_test

import (
	"testing"

	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/stretchr/testify/require"
)

func TestPenaltyTable_CanonicalOrder(t *testing.T) {
	table := grouping.NewPenaltyTable(10)
	table.Record("zoe", "adam")

	require.InDelta(t, 0.1, table.Penalty("adam", "zoe"), 1e-9)
	require.InDelta(t, 0.1, table.Penalty("zoe", "adam"), 1e-9)
}

func TestPenaltyTable_Bounded(t *testing.T) {
	table := grouping.NewPenaltyTable(5)
	for i := 0; i < 12; i++ {
		table.Record("a", "b")
	}
	require.Equal(t, 1.0, table.Penalty("a", "b"))
}

func TestPenaltyTable_AbsentPairIsZero(t *testing.T) {
	table := grouping.NewPenaltyTable(10)
	require.Zero(t, table.Penalty("a", "b"))

	var nilTable *grouping.PenaltyTable
	require.Zero(t, nilTable.Penalty("a", "b"))
}
