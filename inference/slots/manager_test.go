package slots_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/slots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdsAreFreshAndIncreasing(t *testing.T) {
	m := slots.NewManager()
	v := m.CreateVariable(model.MissingLocation)
	c := m.CreateConstant("Q", model.MissingLocation)
	comb := m.CreateCombVariable(v, c, model.MissingLocation)
	refined := m.CreateRefinementVariable(v, model.MissingLocation)
	exist := m.CreateExistentialVariable(v, c, model.MissingLocation)

	ids := []model.SlotID{v.ID(), c.ID(), comb.ID(), refined.ID(), exist.ID()}
	assert.Equal(t, []model.SlotID{1, 2, 3, 4, 5}, ids)
	assert.Equal(t, 5, m.Len())
	assert.Len(t, m.Slots(), 5)
	assert.Equal(t, model.SlotID(6), m.NextID())
}

func TestAnnotationRoundTrip(t *testing.T) {
	m := slots.NewManager()
	created := []model.Slot{
		m.CreateVariable(model.MissingLocation),
		m.CreateConstant("Q", model.MissingLocation),
	}
	created = append(created,
		m.CreateCombVariable(created[0], created[1], model.MissingLocation),
		m.CreateRefinementVariable(created[0], model.MissingLocation),
		m.CreateExistentialVariable(created[0], created[1], model.MissingLocation),
	)
	for _, slot := range created {
		t.Run(slot.String(), func(t *testing.T) {
			anno := m.Annotation(slot)
			assert.Equal(t, anno, m.Annotation(slot), "annotations must be deterministic")
			back, err := m.Slot(anno)
			require.NoError(t, err)
			assert.Same(t, slot, back)
		})
	}
}

func TestConstantsShareAnnotation(t *testing.T) {
	m := slots.NewManager()
	first := m.CreateConstant("Q", model.Location{File: "a.go", Line: 1})
	second := m.CreateConstant("Q", model.Location{File: "a.go", Line: 2})
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, atm.Real("Q"), m.Annotation(second))

	back, err := m.Slot(atm.Real("Q"))
	require.NoError(t, err)
	assert.Same(t, first, back)
	assert.Same(t, first, m.ConstantFor("Q"))

	other := m.ConstantFor("Other")
	assert.Same(t, other, m.ConstantFor("Other"))
}

func TestUnknownAnnotation(t *testing.T) {
	m := slots.NewManager()
	_, err := m.Slot(atm.SlotOf(atm.VarAnnot, 42))
	require.Error(t, err)

	var unknown *slots.UnknownSlotError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, atm.SlotOf(atm.VarAnnot, 42), unknown.Annotation)
	assert.True(t, errors.Is(err, ierr.ErrUnknownSlot))
}
