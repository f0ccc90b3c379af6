package grouping

import (
	"encoding/json"
	"fmt"
)

// Mode names one of the four grouping algorithms.
type Mode string

const (
	ModeSplit      Mode = "split"
	ModeSimilarity Mode = "similarity"
	ModeDiversity  Mode = "diversity"
	ModeBalanced   Mode = "balanced"
)

// Criteria is the tagged union of grouping requests. Exactly one concrete
// shape is active; dispatch on Mode(), never on field presence.
type Criteria interface {
	Mode() Mode
	Validate() error
}

// SplitCriteria partitions by exact value of one or two categorical fields.
type SplitCriteria struct {
	Fields []string `json:"fields"`
}

func (SplitCriteria) Mode() Mode { return ModeSplit }

func (c SplitCriteria) Validate() error {
	if len(c.Fields) < 1 || len(c.Fields) > 2 {
		return fmt.Errorf("%w: split requires 1-2 fields, got %d", ErrInvalidCriteria, len(c.Fields))
	}
	return nil
}

// SimilarityCriteria clusters entries so that each group is internally alike.
type SimilarityCriteria struct {
	Fields        []WeightedField `json:"fields"`
	GroupCount    int             `json:"group_count"`
	VarietyWeight float64         `json:"variety_weight,omitempty"`
}

func (SimilarityCriteria) Mode() Mode { return ModeSimilarity }

func (c SimilarityCriteria) Validate() error {
	return validateClusterShape(c.Fields, c.GroupCount, c.VarietyWeight)
}

// DiversityCriteria clusters entries so that each group is internally mixed.
type DiversityCriteria struct {
	Fields        []WeightedField `json:"fields"`
	GroupCount    int             `json:"group_count"`
	VarietyWeight float64         `json:"variety_weight,omitempty"`
}

func (DiversityCriteria) Mode() Mode { return ModeDiversity }

func (c DiversityCriteria) Validate() error {
	return validateClusterShape(c.Fields, c.GroupCount, c.VarietyWeight)
}

// BalancedCriteria builds near-equal-strength teams from numeric fields,
// optionally spreading categorical partitions evenly across teams.
type BalancedCriteria struct {
	BalanceFields   []WeightedField `json:"balance_fields"`
	TeamCount       int             `json:"team_count"`
	PartitionFields []string        `json:"partition_fields,omitempty"`
	VarietyWeight   float64         `json:"variety_weight,omitempty"`
}

func (BalancedCriteria) Mode() Mode { return ModeBalanced }

func (c BalancedCriteria) Validate() error {
	if len(c.BalanceFields) < 1 || len(c.BalanceFields) > 10 {
		return fmt.Errorf("%w: balanced requires 1-10 balance fields, got %d", ErrInvalidCriteria, len(c.BalanceFields))
	}
	for _, f := range c.BalanceFields {
		if f.Weight < 0 {
			return fmt.Errorf("%w: negative weight for field %s", ErrInvalidCriteria, f.FieldID)
		}
	}
	if c.TeamCount < 2 {
		return fmt.Errorf("%w: team count must be at least 2, got %d", ErrInvalidCriteria, c.TeamCount)
	}
	if len(c.PartitionFields) > 2 {
		return fmt.Errorf("%w: at most 2 partition fields, got %d", ErrInvalidCriteria, len(c.PartitionFields))
	}
	if c.VarietyWeight < 0 {
		return fmt.Errorf("%w: variety weight must not be negative", ErrInvalidCriteria)
	}
	return nil
}

func validateClusterShape(fields []WeightedField, groupCount int, varietyWeight float64) error {
	if len(fields) < 1 || len(fields) > 10 {
		return fmt.Errorf("%w: requires 1-10 weighted fields, got %d", ErrInvalidCriteria, len(fields))
	}
	for _, f := range fields {
		if f.Weight < 0 {
			return fmt.Errorf("%w: negative weight for field %s", ErrInvalidCriteria, f.FieldID)
		}
	}
	if groupCount < 2 {
		return fmt.Errorf("%w: group count must be at least 2, got %d", ErrInvalidCriteria, groupCount)
	}
	if varietyWeight < 0 {
		return fmt.Errorf("%w: variety weight must not be negative", ErrInvalidCriteria)
	}
	return nil
}

// RequiredFields lists the field ids an entry must carry a usable value for.
func RequiredFields(c Criteria) []string {
	switch crit := c.(type) {
	case SplitCriteria:
		// Split never excludes anyone; missing values bucket under "Unknown".
		return nil
	case SimilarityCriteria:
		return fieldIDs(crit.Fields)
	case DiversityCriteria:
		return fieldIDs(crit.Fields)
	case BalancedCriteria:
		return fieldIDs(crit.BalanceFields)
	default:
		return nil
	}
}

// VarietyWeight returns the variety-penalty weight of the criteria, 0 for split.
func VarietyWeight(c Criteria) float64 {
	switch crit := c.(type) {
	case SimilarityCriteria:
		return crit.VarietyWeight
	case DiversityCriteria:
		return crit.VarietyWeight
	case BalancedCriteria:
		return crit.VarietyWeight
	default:
		return 0
	}
}

func fieldIDs(fields []WeightedField) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.FieldID
	}
	return ids
}

type criteriaEnvelope struct {
	Mode Mode            `json:"mode"`
	Body json.RawMessage `json:"criteria"`
}

// EncodeCriteria serializes any criteria shape with its mode discriminator.
func EncodeCriteria(c Criteria) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil criteria", ErrInvalidCriteria)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	return json.Marshal(criteriaEnvelope{Mode: c.Mode(), Body: body})
}

// DecodeCriteria restores a criteria value from its tagged encoding.
func DecodeCriteria(data []byte) (Criteria, error) {
	var env criteriaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	switch env.Mode {
	case ModeSplit:
		var c SplitCriteria
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, fmt.Errorf("decode split criteria: %w", err)
		}
		return c, nil
	case ModeSimilarity:
		var c SimilarityCriteria
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, fmt.Errorf("decode similarity criteria: %w", err)
		}
		return c, nil
	case ModeDiversity:
		var c DiversityCriteria
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, fmt.Errorf("decode diversity criteria: %w", err)
		}
		return c, nil
	case ModeBalanced:
		var c BalancedCriteria
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, fmt.Errorf("decode balanced criteria: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidCriteria, env.Mode)
	}
}
