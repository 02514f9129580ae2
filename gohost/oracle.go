package gohost

import (
	"go/types"

	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/program"
)

var _ factory.RealOracle = (*Oracle)(nil)

// Oracle gives the types of elements declared outside the loaded packages, typically
// the standard library and dependencies.
//
// Go source carries no qualifiers, so an element is unannotated unless it is listed in
// Known, by its full name (e.g. "os.Getenv", "(*bytes.Buffer).String"). A known
// function has its first result annotated, any other element its own type
type Oracle struct {
	host  *Host
	Known map[string]lattice.Qualifier
	root  program.Tree
}

func NewOracle(h *Host, known map[string]lattice.Qualifier) *Oracle {
	if known == nil {
		known = make(map[string]lattice.Qualifier)
	}
	return &Oracle{host: h, Known: known}
}

func (o *Oracle) AnnotatedTypeOf(e program.Element) (atm.AnnotatedType, error) {
	t, err := o.host.ElementType(e)
	if err != nil {
		return nil, err
	}
	obj, ok := objectOf(e)
	if !ok {
		return t, nil
	}
	q, ok := o.Known[fullName(obj)]
	if !ok {
		return t, nil
	}
	target := t
	if exe, ok := t.(*atm.Executable); ok {
		target = exe.Return
	}
	if tuple, ok := target.(*atm.Declared); ok && tuple.Name == tupleName && len(tuple.TypeArgs) > 0 {
		target = tuple.TypeArgs[0]
	}
	if target == nil || target.Kind() == atm.KindNoType {
		return t, nil
	}
	target.ReplaceAnnotation(atm.Real(q))
	logger.Debug("oracle knows element", "element", fullName(obj), "qualifier", q)
	return t, nil
}

func (o *Oracle) SetRoot(root program.Tree) { o.root = root }

func fullName(obj types.Object) string {
	if fn, ok := obj.(*types.Func); ok {
		return fn.FullName()
	}
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}
