package grouping

import (
	"sort"
	"strings"
)

// UnknownBucket is the group label for entries missing a split field value.
const UnknownBucket = "Unknown"

// SplitByFields partitions entries by exact value of one or two fields. Group
// names are the field values, joined with " + " for multi-field splits, and
// groups are sorted by name for determinism. Sizes are whatever the partition
// yields; no balancing happens here.
func SplitByFields(entries []Entry, fields []string) []Group {
	buckets := make(map[string][]string)
	for _, e := range entries {
		labels := make([]string, len(fields))
		for i, fieldID := range fields {
			labels[i] = splitLabel(e.Attr(fieldID))
		}
		name := strings.Join(labels, " + ")
		buckets[name] = append(buckets[name], e.PersonID)
	}

	groups := make([]Group, 0, len(buckets))
	for name, members := range buckets {
		groups = append(groups, Group{Name: name, MemberIDs: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func splitLabel(v Value) string {
	text := strings.TrimSpace(v.Text())
	if v.IsNull() || text == "" {
		return UnknownBucket
	}
	return text
}
