package constraints_test

import (
	"testing"

	"github.com/cottand/qinfer/inference/constraints"
	"github.com/cottand/qinfer/inference/model"
	"github.com/stretchr/testify/assert"
)

func TestDeduplication(t *testing.T) {
	a := model.NewVariableSlot(1, model.MissingLocation)
	b := model.NewVariableSlot(2, model.MissingLocation)
	m := constraints.NewManager()

	assert.True(t, m.Add(model.NewSubtype(a, b)))
	assert.False(t, m.Add(model.NewSubtype(a, b)))
	assert.True(t, m.Add(model.NewSubtype(b, a)))
	assert.True(t, m.Add(model.NewEquality(a, b)))
	assert.False(t, m.Add(model.NewEquality(b, a)))
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains(model.NewEquality(b, a)))
}

func TestAddAllKeepsOrder(t *testing.T) {
	a := model.NewVariableSlot(1, model.MissingLocation)
	b := model.NewVariableSlot(2, model.MissingLocation)
	c := model.NewVariableSlot(3, model.MissingLocation)
	m := constraints.NewManager()
	m.Add(model.NewSubtype(b, c))

	added := m.AddAll(model.NewSubtype(a, b), model.NewSubtype(b, c), model.NewEquality(a, c))
	assert.Len(t, added, 2)

	keys := make([]string, 0)
	for _, constraint := range m.All() {
		keys = append(keys, constraint.Key())
	}
	assert.Equal(t, []string{"sub 2 3", "sub 1 2", "eq 1 3"}, keys)
}
