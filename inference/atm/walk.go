package atm

import "strconv"

// Visitor is called for each position by Walk. path is "" for the root, otherwise the
// "/"-separated route from the root, e.g. "arg0/component"
type Visitor func(path string, t AnnotatedType) error

// Walk visits every position of t which can hold a qualifier, parents before children.
//
// The bounds of a type variable use are not visited: they belong to the type parameter's
// declaration. Executables and void carry no qualifier themselves, but their receiver,
// parameters and return are visited
func Walk(t AnnotatedType, visit Visitor) error {
	return walk("", t, visit, make(map[AnnotatedType]bool))
}

func walk(path string, t AnnotatedType, visit Visitor, visited map[AnnotatedType]bool) error {
	if t == nil || visited[t] {
		return nil
	}
	visited[t] = true
	switch t := t.(type) {
	case *Executable:
		if err := walk(join(path, "receiver"), t.Receiver, visit, visited); err != nil {
			return err
		}
		for i, p := range t.Params {
			if err := walk(join(path, "param"+strconv.Itoa(i)), p, visit, visited); err != nil {
				return err
			}
		}
		return walk(join(path, "return"), t.Return, visit, visited)
	case *NoType:
		return nil
	}

	if err := visit(path, t); err != nil {
		return err
	}
	switch t := t.(type) {
	case *Declared:
		for i, arg := range t.TypeArgs {
			if err := walk(join(path, "arg"+strconv.Itoa(i)), arg, visit, visited); err != nil {
				return err
			}
		}
	case *Array:
		return walk(join(path, "component"), t.Component, visit, visited)
	case *Wildcard:
		if err := walk(join(path, "extends"), t.ExtendsBound, visit, visited); err != nil {
			return err
		}
		return walk(join(path, "super"), t.SuperBound, visit, visited)
	}
	return nil
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "/" + elem
}
