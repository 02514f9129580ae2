package model_test

import (
	"testing"

	"github.com/cottand/qinfer/inference/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualityIsUnordered(t *testing.T) {
	a := model.NewVariableSlot(1, model.MissingLocation)
	b := model.NewVariableSlot(2, model.MissingLocation)

	assert.True(t, model.Same(model.NewEquality(a, b), model.NewEquality(b, a)))
	assert.False(t, model.Same(model.NewSubtype(a, b), model.NewSubtype(b, a)))
	assert.False(t, model.Same(model.NewSubtype(a, b), model.NewEquality(a, b)))
}

func TestLocationAt(t *testing.T) {
	loc := model.Location{File: "a.go", Line: 3, Column: 7}
	assert.Equal(t, "a.go:3:7", loc.String())
	assert.Equal(t, "a.go:3:7#x/type", loc.At("x").At("type").String())
	assert.Equal(t, "<missing>", model.MissingLocation.String())
	assert.True(t, model.Location{}.IsMissing())
	assert.Equal(t, "", loc.Path, "At must not mutate its receiver")
}

func TestSlotKinds(t *testing.T) {
	v := model.NewVariableSlot(1, model.MissingLocation)
	c := model.NewConstantSlot(2, "Q", model.MissingLocation)
	r := model.NewRefinementVariableSlot(3, v, model.MissingLocation)
	e := model.NewExistentialVariableSlot(4, v, c, model.MissingLocation)
	comb := model.NewCombVariableSlot(5, v, c, model.MissingLocation)

	tests := []struct {
		slot     model.Slot
		kind     model.Kind
		constant bool
	}{
		{v, model.KindVariable, false},
		{c, model.KindConstant, true},
		{r, model.KindRefinementVariable, false},
		{e, model.KindExistentialVariable, false},
		{comb, model.KindCombVariable, false},
	}
	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			assert.Equal(t, test.kind, test.slot.Kind())
			assert.Equal(t, test.constant, test.slot.IsConstant())
			assert.Equal(t, !test.constant, test.slot.IsVariable())
		})
	}
	assert.Same(t, v, r.Refined())
	assert.Same(t, c, e.Alternative())
	assert.Same(t, v, comb.Left())
}

type kinds struct{}

func (kinds) SerializeVariableSlot(*model.VariableSlot) string                       { return "var" }
func (kinds) SerializeConstantSlot(*model.ConstantSlot) string                       { return "const" }
func (kinds) SerializeRefinementVariableSlot(*model.RefinementVariableSlot) string   { return "refine" }
func (kinds) SerializeExistentialVariableSlot(*model.ExistentialVariableSlot) string { return "exist" }
func (kinds) SerializeCombVariableSlot(*model.CombVariableSlot) string               { return "comb" }
func (kinds) SerializeSubtypeConstraint(model.SubtypeConstraint) string              { return "sub" }
func (kinds) SerializeEqualityConstraint(model.EqualityConstraint) string            { return "eq" }

func TestSerializeAll(t *testing.T) {
	v := model.NewVariableSlot(1, model.MissingLocation)
	c := model.NewConstantSlot(2, "Q", model.MissingLocation)
	slots, constraints, err := model.SerializeAll[string, string](
		[]model.Slot{v, c, model.NewCombVariableSlot(3, v, c, model.MissingLocation)},
		[]model.Constraint{model.NewSubtype(v, c), model.NewEquality(v, c)},
		kinds{},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"var", "const", "comb"}, slots)
	assert.Equal(t, []string{"sub", "eq"}, constraints)
}
