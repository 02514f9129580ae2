package hierarchy

import (
	"fmt"
	"reflect"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/session"
)

// TypeHierarchy compares whole annotated types, position by position, using a
// QualifierHierarchy for each pair of qualifiers
type TypeHierarchy struct {
	session    *session.Session
	qualifiers *QualifierHierarchy
}

func NewTypeHierarchy(s *session.Session, qualifiers *QualifierHierarchy) *TypeHierarchy {
	return &TypeHierarchy{session: s, qualifiers: qualifiers}
}

func (h *TypeHierarchy) Qualifiers() *QualifierHierarchy { return h.qualifiers }

// visited holds the wildcards and type variables already unwrapped on the current
// comparison path, by identity
type visited = immutable.Set[atm.AnnotatedType]

func emptyVisited() visited {
	return immutable.NewSet[atm.AnnotatedType](identityHasher{})
}

type identityHasher struct{}

func (identityHasher) Hash(t atm.AnnotatedType) uint32 {
	p := reflect.ValueOf(t).Pointer()
	return uint32(p>>3) ^ uint32(uint64(p)>>32)
}

func (identityHasher) Equal(a, b atm.AnnotatedType) bool { return a == b }

// comparison accumulates the constraints of one top-level query
type comparison struct {
	h       *TypeHierarchy
	emitted []model.Constraint
}

// CheckSubtype compares sub <: super. Type arguments are compared invariantly, array
// components covariantly
func (h *TypeHierarchy) CheckSubtype(sub, super atm.AnnotatedType) (Result, error) {
	c := &comparison{h: h}
	holds, err := c.isSubtype(sub, super, emptyVisited())
	if err != nil {
		return Result{}, err
	}
	return Result{Holds: holds, Emitted: c.emitted}, nil
}

// IsSubtype is CheckSubtype, recording its constraints
func (h *TypeHierarchy) IsSubtype(sub, super atm.AnnotatedType) (bool, error) {
	res, err := h.CheckSubtype(sub, super)
	return h.qualifiers.record(res, err)
}

// CheckSubtypeAsTypeArgument compares rhs and lhs in an invariant position, such as the
// type arguments of a generic type
func (h *TypeHierarchy) CheckSubtypeAsTypeArgument(rhs, lhs atm.AnnotatedType) (Result, error) {
	c := &comparison{h: h}
	holds, err := c.isSubtypeAsTypeArgument(rhs, lhs, emptyVisited())
	if err != nil {
		return Result{}, err
	}
	return Result{Holds: holds, Emitted: c.emitted}, nil
}

func (h *TypeHierarchy) IsSubtypeAsTypeArgument(rhs, lhs atm.AnnotatedType) (bool, error) {
	res, err := h.CheckSubtypeAsTypeArgument(rhs, lhs)
	return h.qualifiers.record(res, err)
}

func (c *comparison) isSubtype(sub, super atm.AnnotatedType, seen visited) (bool, error) {
	if sub == nil || super == nil {
		return true, nil
	}
	if sub.Kind() == atm.KindNoType || super.Kind() == atm.KindNoType {
		return true, nil
	}
	if sub.Kind() == atm.KindExecutable || super.Kind() == atm.KindExecutable {
		return false, c.fail(ierr.New(ierr.ErrUnhandledKind, "cannot compare executable types %v and %v", sub, super), sub, super)
	}
	subAnno, superAnno, err := c.single(sub, super)
	if err != nil {
		return false, err
	}
	res, err := c.h.qualifiers.CheckSubtype(subAnno, superAnno)
	if err != nil {
		return false, err
	}
	c.emitted = append(c.emitted, res.Emitted...)
	if !res.Holds {
		return false, nil
	}

	switch sub := sub.(type) {
	case *atm.Declared:
		if super, ok := super.(*atm.Declared); ok {
			return c.typeArguments(sub, super, seen)
		}
	case *atm.Array:
		if super, ok := super.(*atm.Array); ok {
			return c.isSubtype(sub.Component, super.Component, seen)
		}
	}
	return true, nil
}

// typeArguments compares the arguments of two declared types pairwise. A raw use on
// either side has no arguments to compare
func (c *comparison) typeArguments(rhs, lhs *atm.Declared, seen visited) (bool, error) {
	if len(rhs.TypeArgs) == 0 || len(lhs.TypeArgs) == 0 || len(rhs.TypeArgs) != len(lhs.TypeArgs) {
		return true, nil
	}
	for i := range lhs.TypeArgs {
		holds, err := c.isSubtypeAsTypeArgument(rhs.TypeArgs[i], lhs.TypeArgs[i], seen)
		if err != nil || !holds {
			return holds, err
		}
	}
	return true, nil
}

func (c *comparison) isSubtypeAsTypeArgument(rhs, lhs atm.AnnotatedType, seen visited) (bool, error) {
	lhsWildcard, lhsIsWildcard := lhs.(*atm.Wildcard)
	rhsWildcard, rhsIsWildcard := rhs.(*atm.Wildcard)
	switch {
	case lhsIsWildcard && !rhsIsWildcard:
		if seen.Has(lhs) {
			return true, nil
		}
		if lhsWildcard.ExtendsBound == nil {
			return true, nil
		}
		return c.isSubtype(rhs, lhsWildcard.ExtendsBound, seen.Add(lhs))
	case lhsIsWildcard && rhsIsWildcard:
		return c.isSubtype(rhsWildcard.ExtendsBound, lhsWildcard.ExtendsBound, seen)
	}
	if lhsVar, ok := lhs.(*atm.TypeVariable); ok && rhs.Kind() != atm.KindTypeVariable {
		if seen.Has(lhs) {
			return true, nil
		}
		return c.isSubtype(rhs, lhsVar.UpperBound, seen.Add(lhs))
	}

	rhsAnno, lhsAnno, err := c.single(rhs, lhs)
	if err != nil {
		return false, err
	}
	res, err := c.h.qualifiers.CheckEquality(lhsAnno, rhsAnno)
	if err != nil {
		return false, err
	}
	c.emitted = append(c.emitted, res.Emitted...)

	switch rhs := rhs.(type) {
	case *atm.Declared:
		if lhs, ok := lhs.(*atm.Declared); ok {
			return c.typeArguments(rhs, lhs, seen)
		}
	case *atm.Array:
		if lhs, ok := lhs.(*atm.Array); ok {
			// array components within type arguments are invariant too
			return c.isSubtypeAsTypeArgument(rhs.Component, lhs.Component, seen)
		}
	}
	return true, nil
}

// single returns the only annotation of each side, or an error for raw types
func (c *comparison) single(a, b atm.AnnotatedType) (atm.Annotation, atm.Annotation, error) {
	annosA, annosB := a.Annotations(), b.Annotations()
	if len(annosA) != 1 || len(annosB) != 1 {
		return atm.Annotation{}, atm.Annotation{}, c.fail(
			ierr.New(ierr.ErrUnsupportedRawType, "encountered raw types: rhs ( %v ) lhs ( %v ), only 1 annotation expected", a, b),
			a, b,
		)
	}
	return annosA[0], annosB[0], nil
}

func (c *comparison) fail(err error, types ...atm.AnnotatedType) error {
	named := make([]fmt.Stringer, 0, len(types))
	for _, t := range types {
		named = append(named, t)
	}
	return c.h.session.Fail(ierr.WithPath(ierr.WithTypes(err, named...), c.h.session.CurrentPath()))
}
