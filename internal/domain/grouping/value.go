package grouping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the closed set of attribute value shapes.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

// Value is a single attribute value: string, number, boolean, string list, or null.
// The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func List(items []string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}
func Null() Value { return Value{} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// AsString returns the string payload when the value is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric payload when the value is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean payload when the value is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsList returns the list payload when the value is a string list.
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Numeric interprets the value as a number: number values directly,
// string values via parsing. Everything else is non-numeric.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Text returns the display form used for split labels and categorical comparison.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// MarshalJSON encodes the value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any of the supported JSON shapes. Other shapes
// (objects, mixed arrays) are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Value{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list values must contain only strings: %w", err)
		}
		*v = List(items)
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported attribute value %s", trimmed)
		}
		*v = Number(n)
		return nil
	}
}

// Field id namespaces. Profile aggregation tags every field by origin so ids
// from different sources never collide.
const (
	SourceOrg     = "org"
	SourceSession = "session"
	SourceRanking = "ranking"
)

// OrgField namespaces a field id under the organization profile source.
func OrgField(id string) string { return SourceOrg + ":" + id }

// SessionField namespaces a field id under the session form source.
func SessionField(id string) string { return SourceSession + ":" + id }

// RankingField namespaces a field id under the external ranking source.
func RankingField(id string) string { return SourceRanking + ":" + id }

// Entry is a snapshot of one person's attribute data at generation time.
type Entry struct {
	PersonID   string           `json:"person_id"`
	Attributes map[string]Value `json:"attributes"`
}

// Attr looks up an attribute; missing keys read as null.
func (e Entry) Attr(fieldID string) Value {
	if e.Attributes == nil {
		return Null()
	}
	return e.Attributes[fieldID]
}

// HasValue reports whether the entry carries a non-null value for the field.
func (e Entry) HasValue(fieldID string) bool {
	return !e.Attr(fieldID).IsNull()
}

// Group is a transient algorithm result, not yet persisted.
type Group struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}
