package export

import (
	"maps"
	"slices"
	"strconv"
)

// Summary counts the contents of a document
type Summary struct {
	SlotsByKind       map[string]int
	ConstraintsByKind map[string]int
	Failures          int
}

func Summarize(doc *Document) Summary {
	s := Summary{
		SlotsByKind:       make(map[string]int),
		ConstraintsByKind: make(map[string]int),
		Failures:          len(doc.Failures),
	}
	for _, slot := range doc.Slots {
		s.SlotsByKind[slot.Kind]++
	}
	for _, c := range doc.Constraints {
		s.ConstraintsByKind[c.Kind]++
	}
	return s
}

// Rows renders s as a table, header first
func (s Summary) Rows() [][]string {
	rows := [][]string{{"Kind", "Count"}}
	for _, kind := range slices.Sorted(maps.Keys(s.SlotsByKind)) {
		rows = append(rows, []string{"slot " + kind, strconv.Itoa(s.SlotsByKind[kind])})
	}
	for _, kind := range slices.Sorted(maps.Keys(s.ConstraintsByKind)) {
		rows = append(rows, []string{"constraint " + kind, strconv.Itoa(s.ConstraintsByKind[kind])})
	}
	if s.Failures > 0 {
		rows = append(rows, []string{"failures", strconv.Itoa(s.Failures)})
	}
	return rows
}
