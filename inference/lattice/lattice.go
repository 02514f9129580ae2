// Package lattice implements the qualifier hierarchy of a "real" type system: the
// declared qualifiers and their SubtypeOf edges. It is what the inference hierarchy
// falls back to while a flow-sensitive refinement pass is running.
package lattice

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/qinfer/inference/ierr"
	set "github.com/hashicorp/go-set/v3"
)

// Qualifier names one qualifier of a type system, e.g. "NotHardcoded"
type Qualifier string

func (q Qualifier) String() string { return "@" + string(q) }

// Decl declares a qualifier and its direct supertypes
type Decl struct {
	Qualifier Qualifier
	SubtypeOf []Qualifier
	// Polymorphic qualifiers take part in no SubtypeOf edge: they sit right above the
	// bottoms and right below the tops
	Polymorphic bool
}

// Lattice is an immutable multi-graph qualifier hierarchy
type Lattice struct {
	order       []Qualifier
	supertypes  map[Qualifier]*set.Set[Qualifier] // reflexive transitive closure
	polymorphic *set.Set[Qualifier]
	tops        []Qualifier
	bottoms     []Qualifier
}

// New builds a Lattice from decls. Every qualifier named in a SubtypeOf must be declared,
// and the SubtypeOf edges must be acyclic
func New(decls ...Decl) (*Lattice, error) {
	l := &Lattice{
		supertypes:  make(map[Qualifier]*set.Set[Qualifier], len(decls)),
		polymorphic: set.New[Qualifier](0),
	}
	direct := make(map[Qualifier][]Qualifier, len(decls))
	for _, decl := range decls {
		if _, ok := direct[decl.Qualifier]; ok {
			return nil, fmt.Errorf("qualifier %v declared twice", decl.Qualifier)
		}
		l.order = append(l.order, decl.Qualifier)
		direct[decl.Qualifier] = slices.Clone(decl.SubtypeOf)
		if decl.Polymorphic {
			l.polymorphic.Insert(decl.Qualifier)
		}
	}
	for q, supers := range direct {
		for _, super := range supers {
			if _, ok := direct[super]; !ok {
				return nil, fmt.Errorf("qualifier %v is a subtype of undeclared %v", q, super)
			}
			if l.polymorphic.Contains(super) || l.polymorphic.Contains(q) {
				return nil, fmt.Errorf("polymorphic qualifier in SubtypeOf edge %v <: %v", q, super)
			}
		}
	}

	for _, q := range l.order {
		closure := set.New[Qualifier](len(l.order))
		if err := closeOver(q, direct, closure, nil); err != nil {
			return nil, err
		}
		l.supertypes[q] = closure
	}

	for _, q := range l.order {
		if l.polymorphic.Contains(q) {
			continue
		}
		if len(direct[q]) == 0 {
			l.tops = append(l.tops, q)
		}
		isBottom := true
		for _, other := range l.order {
			if other != q && !l.polymorphic.Contains(other) && !l.supertypes[q].Contains(other) {
				isBottom = false
				break
			}
		}
		if isBottom {
			l.bottoms = append(l.bottoms, q)
		}
	}
	if len(l.tops) == 0 {
		return nil, fmt.Errorf("lattice has no top qualifier")
	}

	// polymorphic qualifiers are below every top and above every bottom
	for q := range l.polymorphic.Items() {
		l.supertypes[q].InsertSlice(l.tops)
		for _, bottom := range l.bottoms {
			l.supertypes[bottom].Insert(q)
		}
	}
	return l, nil
}

func closeOver(q Qualifier, direct map[Qualifier][]Qualifier, into *set.Set[Qualifier], stack []Qualifier) error {
	if slices.Contains(stack, q) {
		return fmt.Errorf("cycle in SubtypeOf edges: %v", append(stack, q))
	}
	into.Insert(q)
	for _, super := range direct[q] {
		if err := closeOver(super, direct, into, append(stack, q)); err != nil {
			return err
		}
	}
	return nil
}

// MustNew is New for statically known lattices
func MustNew(decls ...Decl) *Lattice {
	l, err := New(decls...)
	if err != nil {
		panic(err)
	}
	return l
}

// Qualifiers returns all qualifiers in declaration order
func (l *Lattice) Qualifiers() []Qualifier { return slices.Clone(l.order) }

func (l *Lattice) Tops() []Qualifier    { return slices.Clone(l.tops) }
func (l *Lattice) Bottoms() []Qualifier { return slices.Clone(l.bottoms) }

// Top returns the single top qualifier; a lattice with several tops returns the first declared
func (l *Lattice) Top() Qualifier { return l.tops[0] }

func (l *Lattice) Contains(q Qualifier) bool {
	_, ok := l.supertypes[q]
	return ok
}

func (l *Lattice) IsPolymorphic(q Qualifier) bool { return l.polymorphic.Contains(q) }

// IsSubtype reports sub <: super. Unknown qualifiers are never subtypes of anything,
// except of themselves
func (l *Lattice) IsSubtype(sub, super Qualifier) bool {
	if sub == super {
		return true
	}
	supers, ok := l.supertypes[sub]
	return ok && supers.Contains(super)
}

// LeastUpperBound returns the unique least common supertype of a and b
func (l *Lattice) LeastUpperBound(a, b Qualifier) (Qualifier, error) {
	if err := l.checkKnown(a, b); err != nil {
		return "", err
	}
	common := l.supertypes[a].Intersect(l.supertypes[b])
	return l.extreme(common, func(x, y Qualifier) bool { return l.IsSubtype(x, y) }, a, b, "upper")
}

// GreatestLowerBound returns the unique greatest common subtype of a and b
func (l *Lattice) GreatestLowerBound(a, b Qualifier) (Qualifier, error) {
	if err := l.checkKnown(a, b); err != nil {
		return "", err
	}
	common := set.New[Qualifier](len(l.order))
	for _, q := range l.order {
		if l.IsSubtype(q, a) && l.IsSubtype(q, b) {
			common.Insert(q)
		}
	}
	return l.extreme(common, func(x, y Qualifier) bool { return l.IsSubtype(y, x) }, a, b, "lower")
}

func (l *Lattice) checkKnown(qs ...Qualifier) error {
	for _, q := range qs {
		if !l.Contains(q) {
			return fmt.Errorf("qualifier %v is not part of this lattice", q)
		}
	}
	return nil
}

// extreme finds the element of candidates which is below (per below) every other
func (l *Lattice) extreme(candidates set.Collection[Qualifier], below func(x, y Qualifier) bool, a, b Qualifier, which string) (Qualifier, error) {
	var found []Qualifier
	for _, q := range l.order {
		if !candidates.Contains(q) {
			continue
		}
		least := true
		for other := range candidates.Items() {
			if !below(q, other) {
				least = false
				break
			}
		}
		if least {
			found = append(found, q)
		}
	}
	if len(found) != 1 {
		return "", ierr.New(ierr.ErrNoLeastUpperBound, "%v and %v have %d least %s bounds: %v", a, b, len(found), which, found)
	}
	return found[0], nil
}

func (l *Lattice) String() string {
	sb := &strings.Builder{}
	for i, q := range l.order {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(q.String())
	}
	return sb.String()
}
