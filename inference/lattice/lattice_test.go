package lattice_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	top    lattice.Qualifier = "Top"
	left   lattice.Qualifier = "Left"
	right  lattice.Qualifier = "Right"
	bottom lattice.Qualifier = "Bottom"
	poly   lattice.Qualifier = "Poly"
)

// diamond is Bottom <: Left, Right <: Top, plus a polymorphic qualifier
func diamond(t *testing.T) *lattice.Lattice {
	l, err := lattice.New(
		lattice.Decl{Qualifier: top},
		lattice.Decl{Qualifier: left, SubtypeOf: []lattice.Qualifier{top}},
		lattice.Decl{Qualifier: right, SubtypeOf: []lattice.Qualifier{top}},
		lattice.Decl{Qualifier: bottom, SubtypeOf: []lattice.Qualifier{left, right}},
		lattice.Decl{Qualifier: poly, Polymorphic: true},
	)
	require.NoError(t, err)
	return l
}

func TestTopsAndBottoms(t *testing.T) {
	l := diamond(t)
	assert.Equal(t, []lattice.Qualifier{top}, l.Tops())
	assert.Equal(t, []lattice.Qualifier{bottom}, l.Bottoms())
	assert.Equal(t, top, l.Top())
	assert.Equal(t, []lattice.Qualifier{top, left, right, bottom, poly}, l.Qualifiers())
	assert.True(t, l.IsPolymorphic(poly))
	assert.False(t, l.IsPolymorphic(top))
}

func TestIsSubtype(t *testing.T) {
	l := diamond(t)
	tests := []struct {
		sub, super lattice.Qualifier
		expected   bool
	}{
		{bottom, top, true},
		{bottom, left, true},
		{left, top, true},
		{left, right, false},
		{top, bottom, false},
		{left, left, true},
		{poly, top, true},
		{bottom, poly, true},
		{poly, left, false},
		{"Unknown", "Unknown", true},
		{"Unknown", top, false},
	}
	for _, test := range tests {
		t.Run(string(test.sub)+" <: "+string(test.super), func(t *testing.T) {
			assert.Equal(t, test.expected, l.IsSubtype(test.sub, test.super))
		})
	}
}

func TestLeastUpperBound(t *testing.T) {
	l := diamond(t)
	lub, err := l.LeastUpperBound(left, right)
	require.NoError(t, err)
	assert.Equal(t, top, lub)

	lub, err = l.LeastUpperBound(bottom, left)
	require.NoError(t, err)
	assert.Equal(t, left, lub)

	glb, err := l.GreatestLowerBound(left, right)
	require.NoError(t, err)
	assert.Equal(t, bottom, glb)

	_, err = l.LeastUpperBound(left, "Unknown")
	assert.Error(t, err)
}

func TestAmbiguousLeastUpperBound(t *testing.T) {
	// a and b have two incomparable common supertypes
	l, err := lattice.New(
		lattice.Decl{Qualifier: "T1"},
		lattice.Decl{Qualifier: "T2"},
		lattice.Decl{Qualifier: "A", SubtypeOf: []lattice.Qualifier{"T1", "T2"}},
		lattice.Decl{Qualifier: "B", SubtypeOf: []lattice.Qualifier{"T1", "T2"}},
	)
	require.NoError(t, err)
	_, err = l.LeastUpperBound("A", "B")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierr.ErrNoLeastUpperBound))
}

func TestInvalidLattices(t *testing.T) {
	tests := map[string][]lattice.Decl{
		"duplicate": {{Qualifier: "A"}, {Qualifier: "A"}},
		"undeclared": {{Qualifier: "A", SubtypeOf: []lattice.Qualifier{"B"}}},
		"cycle": {
			{Qualifier: "A", SubtypeOf: []lattice.Qualifier{"B"}},
			{Qualifier: "B", SubtypeOf: []lattice.Qualifier{"A"}},
		},
		"polymorphic edge": {{Qualifier: "A"}, {Qualifier: "P", Polymorphic: true, SubtypeOf: []lattice.Qualifier{"A"}}},
		"no top":           {},
	}
	for name, decls := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := lattice.New(decls...)
			assert.Error(t, err)
		})
	}
}
