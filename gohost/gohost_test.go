package gohost_test

import (
	"context"
	"testing"

	"github.com/cottand/qinfer/gohost"
	"github.com/cottand/qinfer/hardcoded"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generated struct {
	t *testing.T
	s *session.Session
}

func generate(t *testing.T) generated {
	t.Helper()
	s, err := gohost.Generate(context.Background(), gohost.Options{
		Dir:    "testdata/flows",
		System: hardcoded.New(),
		Known:  map[string]lattice.Qualifier{"os.Getenv": hardcoded.MaybeHardcoded},
	})
	require.NoError(t, err)
	require.Empty(t, s.Failures)
	return generated{t: t, s: s}
}

// slotAt is the slot made at line of flows.go for path
func (g generated) slotAt(line int, path string) model.Slot {
	g.t.Helper()
	for _, slot := range g.s.Slots.Slots() {
		if loc := slot.Location(); loc.Line == line && loc.Path == path {
			return slot
		}
	}
	require.FailNowf(g.t, "missing slot", "no slot at line %d for %q", line, path)
	return nil
}

func (g generated) maybe() model.Slot {
	return g.s.Slots.ConstantFor(hardcoded.MaybeHardcoded)
}

func (g generated) subtype(sub, super model.Slot) bool {
	return g.s.Constraints.Contains(model.NewSubtype(sub, super))
}

func (g generated) refinementOf(declared model.Slot) *model.RefinementVariableSlot {
	g.t.Helper()
	for _, slot := range g.s.Slots.Slots() {
		if ref, ok := slot.(*model.RefinementVariableSlot); ok && ref.Refined() == declared {
			return ref
		}
	}
	require.FailNowf(g.t, "missing refinement", "nothing refines %v", declared)
	return nil
}

func TestGenerateLiteral(t *testing.T) {
	g := generate(t)
	x := g.slotAt(11, "x/type")

	assert.True(t, g.subtype(g.maybe(), x))
	assert.True(t, g.subtype(x, g.slotAt(10, "literal/type/return")))
}

func TestGenerateAssignment(t *testing.T) {
	g := generate(t)
	x, y := g.slotAt(16, "x/type"), g.slotAt(15, "y/type")

	assert.True(t, g.subtype(y, x))
	assert.False(t, g.subtype(x, y))

	ref := g.refinementOf(x)
	assert.Equal(t, 17, ref.Location().Line)
	assert.True(t, g.subtype(ref, x))
	assert.True(t, g.s.Constraints.Contains(model.NewEquality(ref, y)))
	// the read after the assignment sees the refinement
	assert.True(t, g.subtype(ref, g.slotAt(15, "assign/type/return")))
}

func TestGenerateOracle(t *testing.T) {
	g := generate(t)

	assert.True(t, g.subtype(g.maybe(), g.slotAt(21, "env/type/return")))
}

func TestGenerateCompositeLiteral(t *testing.T) {
	g := generate(t)

	assert.True(t, g.subtype(g.maybe(), g.slotAt(7, "Secret/type")))
	assert.True(t, g.subtype(g.slotAt(25, "name/type"), g.slotAt(6, "Name/type")))
}

func TestGenerateGenericCall(t *testing.T) {
	g := generate(t)
	arg := g.slotAt(32, "typearg0")

	assert.True(t, g.subtype(g.maybe(), arg))
	assert.True(t, g.subtype(arg, g.slotAt(31, "generic/type/return")))
}

func TestGenerateGenericMethod(t *testing.T) {
	g := generate(t)
	arg := g.slotAt(51, "typearg0")

	assert.True(t, g.subtype(arg, g.slotAt(49, "unbox/type/return")))
}

func TestGenerateGenericField(t *testing.T) {
	g := generate(t)
	siteKey, p := g.slotAt(66, "arg0"), g.slotAt(66, "p/type/arg0")

	// the composite literal fills the type arguments of its own site
	assert.True(t, g.subtype(g.maybe(), siteKey))
	assert.True(t, g.s.Constraints.Contains(model.NewEquality(p, siteKey)))
	// and the field read goes through the type arguments of p
	assert.True(t, g.subtype(p, g.slotAt(65, "read/type/return")))
}

func TestGenerateBinaryAndReassignment(t *testing.T) {
	g := generate(t)
	a, b, s := g.slotAt(35, "a/type"), g.slotAt(35, "b/type"), g.slotAt(36, "s/type")

	comb, ok := g.slotAt(36, "").(*model.CombVariableSlot)
	require.True(t, ok)
	assert.Equal(t, a, comb.Left())
	assert.Equal(t, b, comb.Right())
	assert.True(t, g.subtype(comb, s))

	ref := g.refinementOf(s)
	assert.Equal(t, 38, ref.Location().Line)
	assert.True(t, g.s.Constraints.Contains(model.NewEquality(ref, g.maybe())))
	assert.True(t, g.subtype(ref, g.slotAt(35, "ternary/type/return")))
}

func TestGenerateRange(t *testing.T) {
	g := generate(t)
	v := g.slotAt(55, "v/type")

	assert.True(t, g.subtype(g.slotAt(54, "values/type/component"), v))
	assert.True(t, g.subtype(v, g.slotAt(54, "ch/type/arg0")))
}

func TestLoadMissingDir(t *testing.T) {
	_, err := gohost.Load(context.Background(), "testdata/nope")
	assert.Error(t, err)
}
