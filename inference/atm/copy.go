package atm

import (
	"fmt"
	"slices"

	"github.com/cottand/qinfer/inference/program"
)

// DeepCopy copies t and everything reachable from it, preserving sharing and cycles
// between type variables and their bounds
func DeepCopy[T AnnotatedType](t T) T {
	return deepCopy(AnnotatedType(t), make(map[AnnotatedType]AnnotatedType), nil).(T)
}

// deepCopy copies t; when replace returns a type for a type variable, that type is used
// instead of copying the variable
func deepCopy(t AnnotatedType, seen map[AnnotatedType]AnnotatedType, replace func(*TypeVariable) (AnnotatedType, bool)) AnnotatedType {
	if t == nil {
		return nil
	}
	if copied, ok := seen[t]; ok {
		return copied
	}
	switch t := t.(type) {
	case *Declared:
		c := &Declared{annotated: t.clonedAnnotations(), Name: t.Name, Element: t.Element}
		seen[t] = c
		for _, arg := range t.TypeArgs {
			c.TypeArgs = append(c.TypeArgs, deepCopy(arg, seen, replace))
		}
		return c
	case *Array:
		c := &Array{annotated: t.clonedAnnotations()}
		seen[t] = c
		c.Component = deepCopy(t.Component, seen, replace)
		return c
	case *Wildcard:
		c := &Wildcard{annotated: t.clonedAnnotations()}
		seen[t] = c
		c.ExtendsBound = deepCopy(t.ExtendsBound, seen, replace)
		c.SuperBound = deepCopy(t.SuperBound, seen, replace)
		return c
	case *TypeVariable:
		if replace != nil {
			if replacement, ok := replace(t); ok {
				c := deepCopy(replacement, make(map[AnnotatedType]AnnotatedType), nil)
				seen[t] = c
				return c
			}
		}
		c := &TypeVariable{annotated: t.clonedAnnotations(), Decl: t.Decl}
		seen[t] = c
		c.UpperBound = deepCopy(t.UpperBound, seen, replace)
		c.LowerBound = deepCopy(t.LowerBound, seen, replace)
		return c
	case *Primitive:
		c := &Primitive{annotated: t.clonedAnnotations(), Name: t.Name}
		seen[t] = c
		return c
	case *Null:
		c := &Null{annotated: t.clonedAnnotations()}
		seen[t] = c
		return c
	case *NoType:
		c := &NoType{annotated: t.clonedAnnotations(), Name: t.Name}
		seen[t] = c
		return c
	case *Executable:
		c := &Executable{annotated: t.clonedAnnotations(), Element: t.Element}
		seen[t] = c
		c.Receiver = deepCopy(t.Receiver, seen, replace)
		for _, p := range t.Params {
			c.Params = append(c.Params, deepCopy(p, seen, replace))
		}
		c.Return = deepCopy(t.Return, seen, replace)
		for _, tv := range t.TypeVars {
			if replacement, ok := deepCopy(tv, seen, replace).(*TypeVariable); ok {
				c.TypeVars = append(c.TypeVars, replacement)
			}
		}
		return c
	}
	panic(fmt.Sprintf("deepCopy: unhandled annotated type %T", t))
}

func (a *annotated) clonedAnnotations() annotated {
	return annotated{annos: slices.Clone(a.annos)}
}

// Substitute returns a copy of t where every use of a type parameter in mapping
// is replaced by a copy of its mapped type. The executable's own type variables which
// were substituted are dropped
func Substitute[T AnnotatedType](t T, mapping map[program.Element]AnnotatedType) T {
	replace := func(tv *TypeVariable) (AnnotatedType, bool) {
		if tv.Decl == nil {
			return nil, false
		}
		arg, ok := mapping[tv.Decl]
		return arg, ok
	}
	copied := deepCopy(AnnotatedType(t), make(map[AnnotatedType]AnnotatedType), replace)
	if exe, ok := copied.(*Executable); ok {
		exe.TypeVars = slices.DeleteFunc(exe.TypeVars, func(tv *TypeVariable) bool {
			_, substituted := mapping[tv.Decl]
			return substituted
		})
	}
	return copied.(T)
}

// CopyAnnotations replaces the annotations of every position of to with those of the
// same position in from. Both types must have the same shape
func CopyAnnotations(from, to AnnotatedType) error {
	return copyAnnotations(from, to, make(map[AnnotatedType]bool))
}

func copyAnnotations(from, to AnnotatedType, visited map[AnnotatedType]bool) error {
	if from == nil && to == nil {
		return nil
	}
	if from == nil || to == nil {
		return fmt.Errorf("cannot copy annotations from %v onto %v: one side is missing", from, to)
	}
	if visited[to] {
		return nil
	}
	visited[to] = true
	if from.Kind() != to.Kind() {
		return fmt.Errorf("cannot copy annotations from %v (a %s) onto %v (a %s)", from, from.Kind(), to, to.Kind())
	}
	to.annotations().annos = slices.Clone(from.annotations().annos)

	switch from := from.(type) {
	case *Declared:
		to := to.(*Declared)
		if len(from.TypeArgs) != len(to.TypeArgs) {
			// raw uses of a generic type only share the primary annotation
			return nil
		}
		for i := range from.TypeArgs {
			if err := copyAnnotations(from.TypeArgs[i], to.TypeArgs[i], visited); err != nil {
				return err
			}
		}
	case *Array:
		return copyAnnotations(from.Component, to.(*Array).Component, visited)
	case *Wildcard:
		to := to.(*Wildcard)
		if err := copyOptional(from.ExtendsBound, to.ExtendsBound, visited); err != nil {
			return err
		}
		return copyOptional(from.SuperBound, to.SuperBound, visited)
	case *TypeVariable:
		to := to.(*TypeVariable)
		if err := copyOptional(from.UpperBound, to.UpperBound, visited); err != nil {
			return err
		}
		return copyOptional(from.LowerBound, to.LowerBound, visited)
	case *Executable:
		to := to.(*Executable)
		if len(from.Params) != len(to.Params) {
			return fmt.Errorf("cannot copy annotations from %v onto %v: %d params instead of %d", from, to, len(from.Params), len(to.Params))
		}
		if err := copyOptional(from.Receiver, to.Receiver, visited); err != nil {
			return err
		}
		for i := range from.Params {
			if err := copyAnnotations(from.Params[i], to.Params[i], visited); err != nil {
				return err
			}
		}
		if err := copyAnnotations(from.Return, to.Return, visited); err != nil {
			return err
		}
		if len(from.TypeVars) == len(to.TypeVars) {
			for i := range from.TypeVars {
				if err := copyAnnotations(from.TypeVars[i], to.TypeVars[i], visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// copyOptional copies between optional positions, which hosts may leave out on either side
func copyOptional(from, to AnnotatedType, visited map[AnnotatedType]bool) error {
	if from == nil || to == nil {
		return nil
	}
	return copyAnnotations(from, to, visited)
}
