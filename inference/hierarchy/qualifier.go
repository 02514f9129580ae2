// Package hierarchy compares qualifiers and annotated types during inference.
//
// Normally a hierarchy is queried to verify that two types have a required subtype
// relationship. Here, outside of flow-sensitive refinement, queries instead record the
// relationship as a constraint for the solver and report success. While a refinement pass
// runs they are real decisions over the type system's lattice, so that dataflow reaches a
// fixed point without polluting the constraint set.
package hierarchy

import (
	"fmt"

	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/session"
	"github.com/cottand/qinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference/hierarchy")

// Result is the outcome of a comparison: the decision, and the constraints the comparison
// stands for. Check* methods only compute it, their counterparts also record Emitted into
// the session's constraint manager
type Result struct {
	Holds   bool
	Emitted []model.Constraint
	// Annotation is the join, for least-upper-bound queries
	Annotation atm.Annotation
}

type QualifierHierarchy struct {
	session *session.Session
	lattice *lattice.Lattice
}

func NewQualifierHierarchy(s *session.Session, l *lattice.Lattice) *QualifierHierarchy {
	return &QualifierHierarchy{session: s, lattice: l}
}

func (h *QualifierHierarchy) Lattice() *lattice.Lattice { return h.lattice }

// CheckSubtype compares two qualifiers
func (h *QualifierHierarchy) CheckSubtype(sub, super atm.Annotation) (Result, error) {
	subSlot, superSlot, err := h.slotsOf(sub, super)
	if err != nil {
		return Result{}, err
	}
	if h.session.PerformingFlow() {
		return Result{Holds: h.realSubtype(subSlot, superSlot)}, nil
	}
	return Result{
		Holds:   true,
		Emitted: []model.Constraint{model.NewSubtype(subSlot, superSlot)},
	}, nil
}

// IsSubtype is CheckSubtype, recording its constraint
func (h *QualifierHierarchy) IsSubtype(sub, super atm.Annotation) (bool, error) {
	res, err := h.CheckSubtype(sub, super)
	return h.record(res, err)
}

// IsSubtypeSets compares the annotation sets of two types, which must hold exactly one
// annotation each
func (h *QualifierHierarchy) IsSubtypeSets(subs, supers []atm.Annotation) (bool, error) {
	if len(subs) != 1 || len(supers) != 1 {
		return false, h.session.Fail(ierr.WithPath(
			ierr.New(ierr.ErrUnsupportedRawType, "all types should have exactly 1 annotation: rhs ( %v ) lhs ( %v )", subs, supers),
			h.session.CurrentPath(),
		))
	}
	return h.IsSubtype(subs[0], supers[0])
}

// CheckEquality compares two qualifiers in an invariant position
func (h *QualifierHierarchy) CheckEquality(first, second atm.Annotation) (Result, error) {
	firstSlot, secondSlot, err := h.slotsOf(first, second)
	if err != nil {
		return Result{}, err
	}
	if h.session.PerformingFlow() {
		holds := h.realSubtype(firstSlot, secondSlot) && h.realSubtype(secondSlot, firstSlot)
		return Result{Holds: holds}, nil
	}
	return Result{
		Holds:   true,
		Emitted: []model.Constraint{model.NewEquality(firstSlot, secondSlot)},
	}, nil
}

// CheckLeastUpperBound joins two qualifiers. Outside of flow it allocates a new comb
// slot at loc, standing for whatever the solver picks above both a and b
func (h *QualifierHierarchy) CheckLeastUpperBound(a, b atm.Annotation, loc model.Location) (Result, error) {
	slotA, slotB, err := h.slotsOf(a, b)
	if err != nil {
		return Result{}, err
	}
	if h.session.PerformingFlow() {
		joined, err := h.realJoin(slotA, slotB)
		if err != nil {
			return Result{}, h.session.Fail(ierr.WithPath(err, h.session.CurrentPath()))
		}
		return Result{Holds: true, Annotation: h.session.Slots.Annotation(joined)}, nil
	}
	comb := h.session.Slots.CreateCombVariable(slotA, slotB, loc)
	return Result{
		Holds: true,
		Emitted: []model.Constraint{
			model.NewSubtype(slotA, comb),
			model.NewSubtype(slotB, comb),
		},
		Annotation: h.session.Slots.Annotation(comb),
	}, nil
}

// LeastUpperBound is CheckLeastUpperBound at no particular location, recording its constraints
func (h *QualifierHierarchy) LeastUpperBound(a, b atm.Annotation) (atm.Annotation, error) {
	return h.LeastUpperBoundAt(a, b, model.MissingLocation)
}

func (h *QualifierHierarchy) LeastUpperBoundAt(a, b atm.Annotation, loc model.Location) (atm.Annotation, error) {
	res, err := h.CheckLeastUpperBound(a, b, loc)
	if _, err := h.record(res, err); err != nil {
		return atm.Annotation{}, err
	}
	return res.Annotation, nil
}

func (h *QualifierHierarchy) record(res Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	for _, c := range h.session.Constraints.AddAll(res.Emitted...) {
		logger.Debug("emitted constraint", "constraint", c)
	}
	return res.Holds, nil
}

func (h *QualifierHierarchy) slotsOf(a, b atm.Annotation) (model.Slot, model.Slot, error) {
	slotA, err := h.session.Slots.Slot(a)
	if err != nil {
		return nil, nil, h.session.Fail(ierr.WithPath(err, h.session.CurrentPath()))
	}
	slotB, err := h.session.Slots.Slot(b)
	if err != nil {
		return nil, nil, h.session.Fail(ierr.WithPath(err, h.session.CurrentPath()))
	}
	return slotA, slotB, nil
}

// realSubtype decides sub <: super over the lattice. Only constants have a known
// qualifier during flow, anything else cannot be refuted yet
func (h *QualifierHierarchy) realSubtype(sub, super model.Slot) bool {
	if sub == super {
		return true
	}
	subConst, okSub := sub.(*model.ConstantSlot)
	superConst, okSuper := super.(*model.ConstantSlot)
	if okSub && okSuper {
		return h.lattice.IsSubtype(subConst.Value(), superConst.Value())
	}
	return true
}

// realJoin is the lattice join of two constants. Joining anything with an unknown
// qualifier over-approximates to the top of the lattice
func (h *QualifierHierarchy) realJoin(a, b model.Slot) (model.Slot, error) {
	if a == b {
		return a, nil
	}
	constA, okA := a.(*model.ConstantSlot)
	constB, okB := b.(*model.ConstantSlot)
	if okA && okB {
		joined, err := h.lattice.LeastUpperBound(constA.Value(), constB.Value())
		if err != nil {
			return nil, err
		}
		return h.session.Slots.ConstantFor(joined), nil
	}
	return h.session.Slots.ConstantFor(h.lattice.Top()), nil
}

func (r Result) String() string {
	return fmt.Sprintf("holds=%v emitted=%v", r.Holds, r.Emitted)
}
