package grouping

import (
	"math"
	"strings"
)

// FieldDistance computes the dissimilarity in [0,1] between two values of a
// field. Missing or null values on either side yield 1 regardless of type.
func FieldDistance(meta FieldMeta, a, b Value) float64 {
	if a.IsNull() || b.IsNull() {
		return 1
	}

	switch meta.Type {
	case FieldBoolean:
		// No type coercion: a string "true" never equals boolean true.
		ab, aok := a.AsBool()
		bb, bok := b.AsBool()
		if !aok || !bok {
			return 1
		}
		if ab == bb {
			return 0
		}
		return 1

	case FieldMulti:
		return jaccardDistance(listOf(a), listOf(b))

	case FieldNumeric:
		an, aok := a.Numeric()
		bn, bok := b.Numeric()
		if !aok || !bok {
			return 1
		}
		if meta.Range == nil || meta.Range.Span() == 0 {
			return 0
		}
		return math.Abs(an-bn) / meta.Range.Span()

	case FieldOrdinal:
		if len(meta.Ranks) == 0 {
			return equalityDistance(a, b)
		}
		ar, aok := meta.Ranks[strings.ToLower(a.Text())]
		br, bok := meta.Ranks[strings.ToLower(b.Text())]
		if !aok || !bok {
			return 1
		}
		span := rankSpan(meta.Ranks)
		if span == 0 {
			return 0
		}
		return math.Abs(float64(ar-br)) / span

	default: // categorical, text, ordinal labels without an order map
		return equalityDistance(a, b)
	}
}

// Distance is the weight-normalized Gower distance between two entries:
// sum(w_f * d_f) / sum(w_f). A zero total weight is defined as distance 0.
func Distance(metas []FieldMeta, a, b Entry) float64 {
	var weighted, total float64
	for _, meta := range metas {
		if meta.Weight <= 0 {
			continue
		}
		total += meta.Weight
		weighted += meta.Weight * FieldDistance(meta, a.Attr(meta.FieldID), b.Attr(meta.FieldID))
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func equalityDistance(a, b Value) float64 {
	if strings.EqualFold(a.Text(), b.Text()) {
		return 0
	}
	return 1
}

// jaccardDistance is 1 - |A∩B|/|A∪B|. Two empty sets are identical.
func jaccardDistance(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, s := range a {
		set[s] |= 1
	}
	for _, s := range b {
		set[s] |= 2
	}
	var both int
	for _, mask := range set {
		if mask == 3 {
			both++
		}
	}
	return 1 - float64(both)/float64(len(set))
}

// listOf views any value as a set of strings for Jaccard comparison; scalar
// values degrade to singleton sets.
func listOf(v Value) []string {
	if items, ok := v.AsList(); ok {
		return items
	}
	if text := v.Text(); text != "" {
		return []string{text}
	}
	return nil
}

func rankSpan(ranks map[string]int) float64 {
	first := true
	var min, max int
	for _, r := range ranks {
		if first {
			min, max = r, r
			first = false
			continue
		}
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	return float64(max - min)
}
