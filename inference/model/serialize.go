package model

import (
	"github.com/cottand/qinfer/inference/ierr"
)

// Serializer turns slots into S and constraints into T, e.g. rows of a solver's
// input. SerializeSlot and SerializeConstraint pick the method for each kind
type Serializer[S, T any] interface {
	SerializeVariableSlot(*VariableSlot) S
	SerializeConstantSlot(*ConstantSlot) S
	SerializeRefinementVariableSlot(*RefinementVariableSlot) S
	SerializeExistentialVariableSlot(*ExistentialVariableSlot) S
	SerializeCombVariableSlot(*CombVariableSlot) S

	SerializeSubtypeConstraint(SubtypeConstraint) T
	SerializeEqualityConstraint(EqualityConstraint) T
}

func SerializeSlot[S, T any](slot Slot, s Serializer[S, T]) (ret S, err error) {
	switch slot := slot.(type) {
	case *VariableSlot:
		return s.SerializeVariableSlot(slot), nil
	case *ConstantSlot:
		return s.SerializeConstantSlot(slot), nil
	case *RefinementVariableSlot:
		return s.SerializeRefinementVariableSlot(slot), nil
	case *ExistentialVariableSlot:
		return s.SerializeExistentialVariableSlot(slot), nil
	case *CombVariableSlot:
		return s.SerializeCombVariableSlot(slot), nil
	default:
		return ret, ierr.New(ierr.ErrUnhandledKind, "cannot serialize slot %v (a %T)", slot, slot)
	}
}

func SerializeConstraint[S, T any](c Constraint, s Serializer[S, T]) (ret T, err error) {
	switch c := c.(type) {
	case SubtypeConstraint:
		return s.SerializeSubtypeConstraint(c), nil
	case EqualityConstraint:
		return s.SerializeEqualityConstraint(c), nil
	default:
		return ret, ierr.New(ierr.ErrUnhandledKind, "cannot serialize constraint %v (a %T)", c, c)
	}
}

// SerializeAll serializes slots and constraints in order, stopping at the first failure
func SerializeAll[S, T any](slots []Slot, constraints []Constraint, s Serializer[S, T]) ([]S, []T, error) {
	serializedSlots := make([]S, 0, len(slots))
	for _, slot := range slots {
		serialized, err := SerializeSlot(slot, s)
		if err != nil {
			return nil, nil, err
		}
		serializedSlots = append(serializedSlots, serialized)
	}
	serializedConstraints := make([]T, 0, len(constraints))
	for _, c := range constraints {
		serialized, err := SerializeConstraint(c, s)
		if err != nil {
			return nil, nil, err
		}
		serializedConstraints = append(serializedConstraints, serialized)
	}
	return serializedSlots, serializedConstraints, nil
}
