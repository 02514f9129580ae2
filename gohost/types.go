package gohost

import (
	"go/types"

	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/program"
)

// Names of the declared types standing for Go type constructors
const (
	pointerName   = "*"
	mapName       = "map"
	chanName      = "chan"
	funcName      = "func"
	structName    = "struct"
	interfaceName = "interface"
	tupleName     = "tuple"
)

// convert returns the unannotated skeleton of t. Every call returns fresh types:
// annotating a skeleton mutates it
func (h *Host) convert(t types.Type) atm.AnnotatedType {
	switch t := t.(type) {
	case *types.Basic:
		if t.Kind() == types.UntypedNil {
			return atm.NewNull()
		}
		return atm.NewPrimitive(t.Name())
	case *types.Alias:
		return h.convert(types.Unalias(t))
	case *types.Named:
		args := make([]atm.AnnotatedType, 0, t.TypeArgs().Len())
		for arg := range t.TypeArgs().Types() {
			args = append(args, h.convert(arg))
		}
		declared := atm.NewDeclared(t.Obj().Name(), args...)
		declared.Element = h.Symbol(t.Obj())
		return declared
	case *types.Pointer:
		return atm.NewDeclared(pointerName, h.convert(t.Elem()))
	case *types.Slice:
		return atm.NewArray(h.convert(t.Elem()))
	case *types.Array:
		return atm.NewArray(h.convert(t.Elem()))
	case *types.Map:
		return atm.NewDeclared(mapName, h.convert(t.Key()), h.convert(t.Elem()))
	case *types.Chan:
		return atm.NewDeclared(chanName, h.convert(t.Elem()))
	case *types.Signature:
		// function values are opaque, their qualifier is the one of the closure
		return atm.NewDeclared(funcName)
	case *types.Struct:
		return atm.NewDeclared(structName)
	case *types.Interface:
		return atm.NewDeclared(interfaceName)
	case *types.TypeParam:
		return atm.NewTypeVariable(h.Symbol(t.Obj()), h.bound(t), nil)
	case *types.Tuple:
		return h.tuple(t)
	}
	return atm.NewDeclared(t.String())
}

// bound is the skeleton of a type parameter's constraint. It is kept shallow, since
// constraints may refer back to the parameter
func (h *Host) bound(tp *types.TypeParam) atm.AnnotatedType {
	constraint := tp.Constraint()
	if named, ok := types.Unalias(constraint).(*types.Named); ok {
		declared := atm.NewDeclared(named.Obj().Name())
		declared.Element = h.Symbol(named.Obj())
		return declared
	}
	return atm.NewDeclared(interfaceName)
}

// tuple is the skeleton of a multi-valued result. A single value is itself, and no value
// is void
func (h *Host) tuple(t *types.Tuple) atm.AnnotatedType {
	switch t.Len() {
	case 0:
		return atm.NewNoType()
	case 1:
		return h.convert(t.At(0).Type())
	}
	values := make([]atm.AnnotatedType, 0, t.Len())
	for v := range t.Variables() {
		values = append(values, h.convert(v.Type()))
	}
	return atm.NewDeclared(tupleName, values...)
}

func (h *Host) executable(e program.Element, sig *types.Signature) *atm.Executable {
	exe := &atm.Executable{
		Element: e,
		Return:  h.tuple(sig.Results()),
	}
	if recv := sig.Recv(); recv != nil {
		exe.Receiver = h.convert(recv.Type())
	}
	for v := range sig.Params().Variables() {
		exe.Params = append(exe.Params, h.convert(v.Type()))
	}
	params := typeParamsOf(sig)
	for tp := range params.TypeParams() {
		exe.TypeVars = append(exe.TypeVars, atm.NewTypeVariable(h.Symbol(tp.Obj()), h.bound(tp), nil))
	}
	return exe
}

// classType is the type of a declared type: declared with its own type parameters as
// type arguments
func (h *Host) classType(obj *types.TypeName) atm.AnnotatedType {
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return h.convert(obj.Type())
	}
	args := make([]atm.AnnotatedType, 0, named.TypeParams().Len())
	for tp := range named.TypeParams().TypeParams() {
		args = append(args, atm.NewTypeVariable(h.Symbol(tp.Obj()), h.bound(tp), nil))
	}
	declared := atm.NewDeclared(obj.Name(), args...)
	declared.Element = h.Symbol(obj)
	return declared
}
