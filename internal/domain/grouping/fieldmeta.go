package grouping

import "strings"

// FieldType classifies how a field's values are compared.
type FieldType string

const (
	FieldCategorical FieldType = "categorical"
	FieldText        FieldType = "text"
	FieldBoolean     FieldType = "boolean"
	FieldMulti       FieldType = "multi"
	FieldNumeric     FieldType = "numeric"
	FieldOrdinal     FieldType = "ordinal"
)

// FieldCatalogEntry describes a field available for grouping, as reported by
// the member-profile collaborator.
type FieldCatalogEntry struct {
	FieldID      string         `json:"field_id" yaml:"field_id"`
	Label        string         `json:"label" yaml:"label"`
	Type         FieldType      `json:"type" yaml:"type"`
	OrdinalRanks map[string]int `json:"ordinal_ranks,omitempty" yaml:"ordinal_ranks,omitempty"`
}

// NumericRange is the observed [Min, Max] of a numeric field across all entries.
type NumericRange struct {
	Min float64
	Max float64
}

// Span returns Max-Min. Zero-variance fields span 0.
func (r NumericRange) Span() float64 { return r.Max - r.Min }

// FieldMeta is the resolved comparison metadata for one field, built once per
// generation request before any distance call.
type FieldMeta struct {
	FieldID string
	Type    FieldType
	Weight  float64
	Range   *NumericRange  // numeric fields only
	Ranks   map[string]int // ordinal fields with an order map; keys lowercased
}

// WeightedField pairs a field id with its criteria weight.
type WeightedField struct {
	FieldID string  `json:"field_id" yaml:"field_id"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// BuildFieldMetas resolves the comparison metadata for the requested fields.
// Types and ordinal rank maps come from the catalog; unknown fields default to
// categorical. Numeric ranges are derived from the entry set, skipping
// non-numeric values.
func BuildFieldMetas(fields []WeightedField, catalog []FieldCatalogEntry, entries []Entry) []FieldMeta {
	byID := make(map[string]FieldCatalogEntry, len(catalog))
	for _, c := range catalog {
		byID[c.FieldID] = c
	}

	metas := make([]FieldMeta, 0, len(fields))
	for _, f := range fields {
		meta := FieldMeta{
			FieldID: f.FieldID,
			Type:    FieldCategorical,
			Weight:  f.Weight,
		}
		if cat, ok := byID[f.FieldID]; ok {
			meta.Type = cat.Type
			if cat.Type == FieldOrdinal && len(cat.OrdinalRanks) > 0 {
				ranks := make(map[string]int, len(cat.OrdinalRanks))
				for label, rank := range cat.OrdinalRanks {
					ranks[strings.ToLower(label)] = rank
				}
				meta.Ranks = ranks
			}
		}
		if meta.Type == FieldNumeric {
			meta.Range = numericRangeOf(entries, f.FieldID)
		}
		metas = append(metas, meta)
	}
	return metas
}

// numericRangeOf scans all entries for numeric values of the field. Entries
// whose value is missing or non-numeric do not contribute. A field with no
// numeric values, or a single distinct one, gets a zero span.
func numericRangeOf(entries []Entry, fieldID string) *NumericRange {
	var r NumericRange
	seen := false
	for _, e := range entries {
		n, ok := e.Attr(fieldID).Numeric()
		if !ok {
			continue
		}
		if !seen {
			r.Min, r.Max = n, n
			seen = true
			continue
		}
		if n < r.Min {
			r.Min = n
		}
		if n > r.Max {
			r.Max = n
		}
	}
	return &r
}

// CatalogLabel returns the display label for a field, falling back to its id.
func CatalogLabel(catalog []FieldCatalogEntry, fieldID string) string {
	for _, c := range catalog {
		if c.FieldID == fieldID && c.Label != "" {
			return c.Label
		}
	}
	return fieldID
}
