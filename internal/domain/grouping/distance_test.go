package grouping_test

import (
	"testing"

	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/stretchr/testify/require"
)

func meta(fieldType grouping.FieldType, weight float64) grouping.FieldMeta {
	return grouping.FieldMeta{FieldID: "f", Type: fieldType, Weight: weight}
}

func TestFieldDistance_Symmetry(t *testing.T) {
	cases := []struct {
		name string
		meta grouping.FieldMeta
		a, b grouping.Value
	}{
		{"categorical", meta(grouping.FieldCategorical, 1), grouping.String("Red"), grouping.String("Blue")},
		{"text", meta(grouping.FieldText, 1), grouping.String("alpha"), grouping.String("beta")},
		{"boolean", meta(grouping.FieldBoolean, 1), grouping.Bool(true), grouping.Bool(false)},
		{"multi", meta(grouping.FieldMulti, 1), grouping.List([]string{"a", "b"}), grouping.List([]string{"b", "c"})},
		{"numeric", grouping.FieldMeta{FieldID: "f", Type: grouping.FieldNumeric, Weight: 1, Range: &grouping.NumericRange{Min: 0, Max: 100}}, grouping.Number(10), grouping.Number(90)},
		{"missing", meta(grouping.FieldCategorical, 1), grouping.Null(), grouping.String("x")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ab := grouping.FieldDistance(tc.meta, tc.a, tc.b)
			ba := grouping.FieldDistance(tc.meta, tc.b, tc.a)
			require.Equal(t, ab, ba)
		})
	}
}

func TestFieldDistance_Identity(t *testing.T) {
	require.Zero(t, grouping.FieldDistance(meta(grouping.FieldCategorical, 1), grouping.String("Red"), grouping.String("red")))
	require.Zero(t, grouping.FieldDistance(meta(grouping.FieldBoolean, 1), grouping.Bool(true), grouping.Bool(true)))

	// A missing value never equals itself.
	require.Equal(t, 1.0, grouping.FieldDistance(meta(grouping.FieldCategorical, 1), grouping.Null(), grouping.Null()))
}

func TestFieldDistance_BooleanNoCoercion(t *testing.T) {
	d := grouping.FieldDistance(meta(grouping.FieldBoolean, 1), grouping.String("true"), grouping.Bool(true))
	require.Equal(t, 1.0, d)
}

func TestFieldDistance_Jaccard(t *testing.T) {
	m := meta(grouping.FieldMulti, 1)
	require.Zero(t, grouping.FieldDistance(m, grouping.List(nil), grouping.List(nil)))
	require.Equal(t, 1.0, grouping.FieldDistance(m, grouping.List([]string{"a", "b"}), grouping.List([]string{"c", "d"})))
	require.InDelta(t, 2.0/3.0, grouping.FieldDistance(m, grouping.List([]string{"a", "b"}), grouping.List([]string{"b", "c"})), 1e-9)
}

func TestFieldDistance_Numeric(t *testing.T) {
	m := grouping.FieldMeta{FieldID: "f", Type: grouping.FieldNumeric, Weight: 1, Range: &grouping.NumericRange{Min: 0, Max: 50}}
	require.InDelta(t, 0.5, grouping.FieldDistance(m, grouping.Number(0), grouping.Number(25)), 1e-9)

	// Zero variance contributes nothing after normalization.
	flat := grouping.FieldMeta{FieldID: "f", Type: grouping.FieldNumeric, Weight: 1, Range: &grouping.NumericRange{Min: 7, Max: 7}}
	require.Zero(t, grouping.FieldDistance(flat, grouping.Number(7), grouping.Number(7)))

	// Non-numeric values are maximally distant.
	require.Equal(t, 1.0, grouping.FieldDistance(m, grouping.String("n/a"), grouping.Number(3)))
}

func TestFieldDistance_Ordinal(t *testing.T) {
	m := grouping.FieldMeta{
		FieldID: "f",
		Type:    grouping.FieldOrdinal,
		Weight:  1,
		Ranks:   map[string]int{"beginner": 1, "intermediate": 2, "advanced": 3},
	}
	require.InDelta(t, 0.5, grouping.FieldDistance(m, grouping.String("Beginner"), grouping.String("Intermediate")), 1e-9)
	require.Equal(t, 1.0, grouping.FieldDistance(m, grouping.String("Beginner"), grouping.String("wizard")))

	// Without an order map ordinal labels degrade to equality distance.
	plain := meta(grouping.FieldOrdinal, 1)
	require.Equal(t, 1.0, grouping.FieldDistance(plain, grouping.String("Beginner"), grouping.String("Advanced")))
	require.Zero(t, grouping.FieldDistance(plain, grouping.String("Advanced"), grouping.String("advanced")))
}

func TestDistance_Aggregate(t *testing.T) {
	metas := []grouping.FieldMeta{
		{FieldID: "org:color", Type: grouping.FieldCategorical, Weight: 1},
		{FieldID: "org:ignored", Type: grouping.FieldCategorical, Weight: 0},
	}
	a := grouping.Entry{PersonID: "a", Attributes: map[string]grouping.Value{
		"org:color":   grouping.String("red"),
		"org:ignored": grouping.String("x"),
	}}
	b := grouping.Entry{PersonID: "b", Attributes: map[string]grouping.Value{
		"org:color":   grouping.String("red"),
		"org:ignored": grouping.String("y"),
	}}

	// Zero-weight fields never influence the result.
	require.Zero(t, grouping.Distance(metas, a, b))

	c := grouping.Entry{PersonID: "c", Attributes: map[string]grouping.Value{
		"org:color": grouping.String("blue"),
	}}
	require.Equal(t, 1.0, grouping.Distance(metas, a, c))
}

func TestDistance_ZeroTotalWeight(t *testing.T) {
	metas := []grouping.FieldMeta{{FieldID: "f", Type: grouping.FieldCategorical, Weight: 0}}
	a := grouping.Entry{PersonID: "a"}
	b := grouping.Entry{PersonID: "b"}
	require.Zero(t, grouping.Distance(metas, a, b))
}

func TestBuildFieldMetas_NumericRange(t *testing.T) {
	entries := []grouping.Entry{
		{PersonID: "a", Attributes: map[string]grouping.Value{"ranking:elo": grouping.Number(1200)}},
		{PersonID: "b", Attributes: map[string]grouping.Value{"ranking:elo": grouping.String("n/a")}},
		{PersonID: "c", Attributes: map[string]grouping.Value{"ranking:elo": grouping.Number(1800)}},
	}
	catalog := []grouping.FieldCatalogEntry{
		{FieldID: "ranking:elo", Label: "Elo", Type: grouping.FieldNumeric},
	}
	metas := grouping.BuildFieldMetas([]grouping.WeightedField{{FieldID: "ranking:elo", Weight: 1}}, catalog, entries)
	require.Len(t, metas, 1)
	require.NotNil(t, metas[0].Range)
	require.Equal(t, 1200.0, metas[0].Range.Min)
	require.Equal(t, 1800.0, metas[0].Range.Max)
}
