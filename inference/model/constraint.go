package model

import (
	"fmt"
	"log/slog"
)

// Constraint is a relation between two slots, created once and never mutated.
// It is implemented by SubtypeConstraint and EqualityConstraint only.
//
// Constraints are values: two constraints are the same constraint iff their Key is equal
type Constraint interface {
	Key() string
	Slots() []Slot
	fmt.Stringer
	slog.LogValuer

	isConstraint()
}

var (
	_ Constraint = SubtypeConstraint{}
	_ Constraint = EqualityConstraint{}
)

// SubtypeConstraint asserts Sub's qualifier is below Super's in the target lattice
type SubtypeConstraint struct {
	Sub, Super Slot
}

func NewSubtype(sub, super Slot) SubtypeConstraint {
	return SubtypeConstraint{Sub: sub, Super: super}
}

func (c SubtypeConstraint) Key() string   { return fmt.Sprintf("sub %d %d", c.Sub.ID(), c.Super.ID()) }
func (c SubtypeConstraint) Slots() []Slot { return []Slot{c.Sub, c.Super} }
func (SubtypeConstraint) isConstraint()   {}
func (c SubtypeConstraint) String() string {
	return fmt.Sprintf("%s <: %s", c.Sub, c.Super)
}
func (c SubtypeConstraint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", "subtype"),
		slog.Uint64("sub", uint64(c.Sub.ID())),
		slog.Uint64("super", uint64(c.Super.ID())),
	)
}

// EqualityConstraint asserts First and Second hold the same qualifier. It is unordered:
// Equality(a, b) and Equality(b, a) are the same constraint
type EqualityConstraint struct {
	First, Second Slot
}

func NewEquality(first, second Slot) EqualityConstraint {
	return EqualityConstraint{First: first, Second: second}
}

func (c EqualityConstraint) Key() string {
	lo, hi := c.First.ID(), c.Second.ID()
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("eq %d %d", lo, hi)
}
func (c EqualityConstraint) Slots() []Slot { return []Slot{c.First, c.Second} }
func (EqualityConstraint) isConstraint()   {}
func (c EqualityConstraint) String() string {
	return fmt.Sprintf("%s == %s", c.First, c.Second)
}
func (c EqualityConstraint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", "equality"),
		slog.Uint64("first", uint64(c.First.ID())),
		slog.Uint64("second", uint64(c.Second.ID())),
	)
}

// Same reports whether a and b are value-equal
func Same(a, b Constraint) bool {
	return a.Key() == b.Key()
}
