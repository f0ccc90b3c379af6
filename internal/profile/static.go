package profile

import (
	"context"
	"fmt"
	"os"

	"github.com/gatherly/matchkit/internal/domain/grouping"
	"gopkg.in/yaml.v3"
)

// StaticSource serves profiles and the field catalog from an in-memory
// fixture, keyed by activity. It backs standalone deployments and the test
// harness; production wires the real aggregation service instead.
type StaticSource struct {
	activities map[string]staticActivity
}

type staticActivity struct {
	Fields  []grouping.FieldCatalogEntry `yaml:"fields"`
	Members []staticMember               `yaml:"members"`
}

type staticMember struct {
	PersonID   string                 `yaml:"person_id"`
	SessionIDs []string               `yaml:"session_ids"`
	Attributes map[string]staticValue `yaml:"attributes"`
}

// staticValue accepts the natural YAML shapes for attribute values.
type staticValue struct {
	value grouping.Value
}

func (v *staticValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		v.value = grouping.List(items)
		return nil
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			v.value = grouping.Bool(b)
		case "!!int", "!!float":
			var n float64
			if err := node.Decode(&n); err != nil {
				return err
			}
			v.value = grouping.Number(n)
		case "!!null":
			v.value = grouping.Null()
		default:
			var s string
			if err := node.Decode(&s); err != nil {
				return err
			}
			v.value = grouping.String(s)
		}
		return nil
	default:
		return fmt.Errorf("unsupported attribute value shape at line %d", node.Line)
	}
}

type staticFile struct {
	Activities map[string]staticActivity `yaml:"activities"`
}

// LoadStaticSource reads a YAML fixture file.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile fixture: %w", err)
	}
	return ParseStaticSource(data)
}

// ParseStaticSource builds a StaticSource from YAML bytes.
func ParseStaticSource(data []byte) (*StaticSource, error) {
	var file staticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profile fixture: %w", err)
	}
	return &StaticSource{activities: file.Activities}, nil
}

// NewStaticSource builds a source directly from profiles and a catalog, for tests.
func NewStaticSource(activityID string, catalog []grouping.FieldCatalogEntry, profiles []MemberProfile) *StaticSource {
	members := make([]staticMember, 0, len(profiles))
	for _, p := range profiles {
		attrs := make(map[string]staticValue, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = staticValue{value: v}
		}
		members = append(members, staticMember{PersonID: p.PersonID, Attributes: attrs})
	}
	return &StaticSource{activities: map[string]staticActivity{
		activityID: {Fields: catalog, Members: members},
	}}
}

// BuildMemberProfiles returns the attribute snapshots for everyone in scope.
func (s *StaticSource) BuildMemberProfiles(ctx context.Context, q Query) ([]MemberProfile, error) {
	act, ok := s.activities[q.ActivityID]
	if !ok {
		return nil, fmt.Errorf("activity %s not in profile fixture", q.ActivityID)
	}

	wanted := make(map[string]bool, len(q.PersonIDs))
	for _, id := range q.PersonIDs {
		wanted[id] = true
	}

	profiles := make([]MemberProfile, 0, len(act.Members))
	for _, m := range act.Members {
		if len(wanted) > 0 && !wanted[m.PersonID] {
			continue
		}
		if q.SessionID != "" && len(m.SessionIDs) > 0 && !contains(m.SessionIDs, q.SessionID) {
			continue
		}
		attrs := make(map[string]grouping.Value, len(m.Attributes))
		for k, v := range m.Attributes {
			attrs[k] = v.value
		}
		profiles = append(profiles, MemberProfile{PersonID: m.PersonID, Attributes: attrs})
	}
	return profiles, nil
}

// AvailableFields returns the activity's field catalog.
func (s *StaticSource) AvailableFields(ctx context.Context, q Query) ([]grouping.FieldCatalogEntry, error) {
	act, ok := s.activities[q.ActivityID]
	if !ok {
		return nil, fmt.Errorf("activity %s not in profile fixture", q.ActivityID)
	}
	return act.Fields, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
