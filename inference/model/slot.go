// Package model holds the slots and constraints emitted by constraint generation.
//
// Slots are the logical variables constraints are generated over. Each slot is attached
// to a code location that can hold an annotation OR has an intrinsic meaning within
// the type system: an int literal can't hold an annotation, but we still generate a
// ConstantSlot representing it.
package model

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cottand/qinfer/inference/lattice"
)

// SlotID identifies a slot within one session. Zero is the "no slot" sentinel
type SlotID uint64

const NoSlot SlotID = 0

func (id SlotID) IsValid() bool { return id != NoSlot }

func (id SlotID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Location is where a slot lives in source, so that a solved qualifier can be written
// back. The zero value is MissingLocation
type Location struct {
	File   string
	Line   int
	Column int
	// Path is the position inside the declared type, e.g. "x/type/arg0"
	Path string
}

var MissingLocation = Location{}

func (l Location) IsMissing() bool { return l == MissingLocation }

func (l Location) String() string {
	if l.IsMissing() {
		return "<missing>"
	}
	pos := fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	if l.Path != "" {
		return pos + "#" + l.Path
	}
	return pos
}

// At returns a copy of l pointing at sub-position path of the same declaration
func (l Location) At(path string) Location {
	if l.Path != "" {
		path = l.Path + "/" + path
	}
	l.Path = path
	return l
}

type Kind int

const (
	KindVariable Kind = iota
	KindConstant
	KindRefinementVariable
	KindExistentialVariable
	KindCombVariable
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "VARIABLE"
	case KindConstant:
		return "CONSTANT"
	case KindRefinementVariable:
		return "REFINEMENT_VARIABLE"
	case KindExistentialVariable:
		return "EXISTENTIAL_VARIABLE"
	case KindCombVariable:
		return "COMB_VARIABLE"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Slot is implemented by *VariableSlot, *ConstantSlot, *RefinementVariableSlot,
// *ExistentialVariableSlot and *CombVariableSlot only.
// Slots are never copied, they are compared by identity
type Slot interface {
	ID() SlotID
	Location() Location
	Kind() Kind
	// IsVariable is true for every kind except KindConstant
	IsVariable() bool
	IsConstant() bool
	fmt.Stringer
	slog.LogValuer

	isSlot()
}

var (
	_ Slot = (*VariableSlot)(nil)
	_ Slot = (*ConstantSlot)(nil)
	_ Slot = (*RefinementVariableSlot)(nil)
	_ Slot = (*ExistentialVariableSlot)(nil)
	_ Slot = (*CombVariableSlot)(nil)
)

type slotBase struct {
	id       SlotID
	location Location
}

func (s *slotBase) ID() SlotID         { return s.id }
func (s *slotBase) Location() Location { return s.location }
func (*slotBase) isSlot()              {}

// VariableSlot is an ordinary unknown at a declared or implicit-use location
type VariableSlot struct {
	slotBase
}

func NewVariableSlot(id SlotID, loc Location) *VariableSlot {
	return &VariableSlot{slotBase{id: id, location: loc}}
}

func (*VariableSlot) Kind() Kind             { return KindVariable }
func (*VariableSlot) IsVariable() bool       { return true }
func (*VariableSlot) IsConstant() bool       { return false }
func (s *VariableSlot) String() string       { return "VariableSlot(" + s.id.String() + ")" }
func (s *VariableSlot) LogValue() slog.Value { return logValue(s) }

// ConstantSlot is a fixed, known qualifier
type ConstantSlot struct {
	slotBase
	value lattice.Qualifier
}

func NewConstantSlot(id SlotID, value lattice.Qualifier, loc Location) *ConstantSlot {
	return &ConstantSlot{slotBase: slotBase{id: id, location: loc}, value: value}
}

func (s *ConstantSlot) Value() lattice.Qualifier { return s.value }
func (*ConstantSlot) Kind() Kind                 { return KindConstant }
func (*ConstantSlot) IsVariable() bool           { return false }
func (*ConstantSlot) IsConstant() bool           { return true }
func (s *ConstantSlot) String() string {
	return fmt.Sprintf("ConstantSlot(%s, %v)", s.id, s.value)
}
func (s *ConstantSlot) LogValue() slog.Value { return logValue(s) }

// RefinementVariableSlot is the qualifier of a variable at one program point, as
// narrowed by dataflow
type RefinementVariableSlot struct {
	slotBase
	refined Slot
}

func NewRefinementVariableSlot(id SlotID, refined Slot, loc Location) *RefinementVariableSlot {
	return &RefinementVariableSlot{slotBase: slotBase{id: id, location: loc}, refined: refined}
}

// Refined is the declared slot this one refines
func (s *RefinementVariableSlot) Refined() Slot  { return s.refined }
func (*RefinementVariableSlot) Kind() Kind       { return KindRefinementVariable }
func (*RefinementVariableSlot) IsVariable() bool { return true }
func (*RefinementVariableSlot) IsConstant() bool { return false }
func (s *RefinementVariableSlot) String() string {
	return fmt.Sprintf("RefinementVariableSlot(%s, refines %s)", s.id, s.refined.ID())
}
func (s *RefinementVariableSlot) LogValue() slog.Value { return logValue(s) }

// ExistentialVariableSlot stands for a qualifier that may or may not exist: if
// the solver decides Potential exists it is used, otherwise Alternative is
type ExistentialVariableSlot struct {
	slotBase
	potential   Slot
	alternative Slot
}

func NewExistentialVariableSlot(id SlotID, potential, alternative Slot, loc Location) *ExistentialVariableSlot {
	return &ExistentialVariableSlot{
		slotBase:    slotBase{id: id, location: loc},
		potential:   potential,
		alternative: alternative,
	}
}

func (s *ExistentialVariableSlot) Potential() Slot   { return s.potential }
func (s *ExistentialVariableSlot) Alternative() Slot { return s.alternative }
func (*ExistentialVariableSlot) Kind() Kind          { return KindExistentialVariable }
func (*ExistentialVariableSlot) IsVariable() bool    { return true }
func (*ExistentialVariableSlot) IsConstant() bool    { return false }
func (s *ExistentialVariableSlot) String() string {
	return fmt.Sprintf("ExistentialVariableSlot(%s, %s ?: %s)", s.id, s.potential.ID(), s.alternative.ID())
}
func (s *ExistentialVariableSlot) LogValue() slog.Value { return logValue(s) }

// CombVariableSlot is the join of two slots. It references them, it does not own them
type CombVariableSlot struct {
	slotBase
	left, right Slot
}

func NewCombVariableSlot(id SlotID, left, right Slot, loc Location) *CombVariableSlot {
	return &CombVariableSlot{slotBase: slotBase{id: id, location: loc}, left: left, right: right}
}

func (s *CombVariableSlot) Left() Slot     { return s.left }
func (s *CombVariableSlot) Right() Slot    { return s.right }
func (*CombVariableSlot) Kind() Kind       { return KindCombVariable }
func (*CombVariableSlot) IsVariable() bool { return true }
func (*CombVariableSlot) IsConstant() bool { return false }
func (s *CombVariableSlot) String() string {
	return fmt.Sprintf("CombVariableSlot(%s, %s | %s)", s.id, s.left.ID(), s.right.ID())
}
func (s *CombVariableSlot) LogValue() slog.Value { return logValue(s) }

func logValue(s Slot) slog.Value {
	return slog.GroupValue(
		slog.String("kind", s.Kind().String()),
		slog.Uint64("id", uint64(s.ID())),
		slog.String("at", s.Location().String()),
	)
}
