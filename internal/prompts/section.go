// Package prompts indexes the benchmark's checklist records by every alias
// they can be referred to with.
package prompts

import (
	"fmt"
	"sort"
)

// Kind tags which variant a Section holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindRecord
	KindList
	KindGroup
)

// Section is one node of a dataset description. Exactly one of Record, Items
// or Groups is meaningful, selected by Kind.
type Section struct {
	Kind   Kind
	Record map[string]any
	Items  []Section
	Groups map[string]Section
}

// NewSection converts a decoded JSON or YAML document into a Section tree.
// Mappings carrying all three alias fields become records; other mappings are
// groups. Scalars and unknown shapes become empty sections.
func NewSection(v any) Section {
	switch node := v.(type) {
	case []any:
		items := make([]Section, 0, len(node))
		for _, item := range node {
			items = append(items, NewSection(item))
		}
		return Section{Kind: KindList, Items: items}
	case map[string]any:
		return sectionFromMap(node)
	case map[any]any:
		m := make(map[string]any, len(node))
		for k, val := range node {
			m[fmt.Sprint(k)] = val
		}
		return sectionFromMap(m)
	default:
		return Section{Kind: KindEmpty}
	}
}

func sectionFromMap(m map[string]any) Section {
	if hasAliases(m) {
		return Section{Kind: KindRecord, Record: m}
	}
	groups := make(map[string]Section, len(m))
	for name, val := range m {
		groups[name] = NewSection(val)
	}
	return Section{Kind: KindGroup, Groups: groups}
}

// Walk visits every record in the tree. Group members are visited in name
// order so that later records deterministically win alias collisions.
func (s Section) Walk(visit func(record map[string]any)) {
	switch s.Kind {
	case KindRecord:
		visit(s.Record)
	case KindList:
		for _, item := range s.Items {
			item.Walk(visit)
		}
	case KindGroup:
		names := make([]string, 0, len(s.Groups))
		for name := range s.Groups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s.Groups[name].Walk(visit)
		}
	}
}
