// Package slots allocates slots and maps them to and from their annotations
package slots

import (
	"fmt"

	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference/slots")

// UnknownSlotError is returned for annotations this Manager never produced.
// It matches ierr.ErrUnknownSlot with errors.Is
type UnknownSlotError struct {
	Annotation atm.Annotation
	err        error
}

func (e *UnknownSlotError) Error() string { return e.err.Error() }
func (e *UnknownSlotError) Unwrap() error { return e.err }

// Manager owns slot identity for one session. It is not safe for concurrent use
type Manager struct {
	// freshCount is the last id handed out; ids are shared by all kinds of slot
	freshCount model.SlotID

	slots        []model.Slot
	byAnnotation map[atm.Annotation]model.Slot
	constants    map[lattice.Qualifier]*model.ConstantSlot
}

func NewManager() *Manager {
	return &Manager{
		byAnnotation: make(map[atm.Annotation]model.Slot),
		constants:    make(map[lattice.Qualifier]*model.ConstantSlot),
	}
}

// NextID allocates a new id. Ids are strictly increasing and never reused
func (m *Manager) NextID() model.SlotID {
	m.freshCount++
	return m.freshCount
}

func (m *Manager) CreateVariable(loc model.Location) *model.VariableSlot {
	slot := model.NewVariableSlot(m.NextID(), loc)
	m.register(slot)
	return slot
}

// CreateConstant allocates a constant slot for q. The first constant of each qualifier is
// the one annotations of that qualifier resolve to
func (m *Manager) CreateConstant(q lattice.Qualifier, loc model.Location) *model.ConstantSlot {
	slot := model.NewConstantSlot(m.NextID(), q, loc)
	m.register(slot)
	if _, ok := m.constants[q]; !ok {
		m.constants[q] = slot
	}
	return slot
}

// ConstantFor returns the canonical constant slot of q, allocating it on first use
func (m *Manager) ConstantFor(q lattice.Qualifier) *model.ConstantSlot {
	if slot, ok := m.constants[q]; ok {
		return slot
	}
	return m.CreateConstant(q, model.MissingLocation)
}

func (m *Manager) CreateCombVariable(left, right model.Slot, loc model.Location) *model.CombVariableSlot {
	slot := model.NewCombVariableSlot(m.NextID(), left, right, loc)
	m.register(slot)
	return slot
}

func (m *Manager) CreateRefinementVariable(refined model.Slot, loc model.Location) *model.RefinementVariableSlot {
	slot := model.NewRefinementVariableSlot(m.NextID(), refined, loc)
	m.register(slot)
	return slot
}

func (m *Manager) CreateExistentialVariable(potential, alternative model.Slot, loc model.Location) *model.ExistentialVariableSlot {
	slot := model.NewExistentialVariableSlot(m.NextID(), potential, alternative, loc)
	m.register(slot)
	return slot
}

func (m *Manager) register(slot model.Slot) {
	m.slots = append(m.slots, slot)
	anno := m.Annotation(slot)
	if _, ok := m.byAnnotation[anno]; !ok {
		m.byAnnotation[anno] = slot
	}
	logger.Debug("created slot", "slot", slot)
}

// Annotation is the external representation of slot. It is deterministic: constant slots
// are represented by their real qualifier, every other slot by a marker embedding its id
func (m *Manager) Annotation(slot model.Slot) atm.Annotation {
	switch slot := slot.(type) {
	case *model.ConstantSlot:
		return atm.Real(slot.Value())
	case *model.VariableSlot:
		return atm.SlotOf(atm.VarAnnot, slot.ID())
	case *model.RefinementVariableSlot:
		return atm.SlotOf(atm.RefineVarAnnot, slot.ID())
	case *model.CombVariableSlot:
		return atm.SlotOf(atm.CombVarAnnot, slot.ID())
	case *model.ExistentialVariableSlot:
		return atm.SlotOf(atm.ExistVarAnnot, slot.ID())
	}
	panic(fmt.Sprintf("slots: unhandled slot %v (a %T)", slot, slot))
}

// Slot resolves anno back to its slot
func (m *Manager) Slot(anno atm.Annotation) (model.Slot, error) {
	if slot, ok := m.byAnnotation[anno]; ok {
		return slot, nil
	}
	return nil, &UnknownSlotError{
		Annotation: anno,
		err:        ierr.New(ierr.ErrUnknownSlot, "annotation %v was not produced by this slot manager", anno),
	}
}

// Slots are all slots in allocation order
func (m *Manager) Slots() []model.Slot {
	return append([]model.Slot(nil), m.slots...)
}

func (m *Manager) Len() int { return len(m.slots) }
