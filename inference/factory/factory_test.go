package factory_test

import (
	"errors"
	"testing"

	"github.com/cottand/qinfer/hardcoded"
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
	"github.com/cottand/qinfer/inference/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// host is a program made of program.Nodes. Elements and trees without a skeleton in
// types are strings
type host struct {
	decls      map[program.Element]program.Tree
	types      map[any]func() atm.AnnotatedType
	typeArgs   map[program.Tree]func() map[program.Element]atm.AnnotatedType
	typeParams map[program.Element][]program.Element
	class      program.Tree
	flow       func(flow factory.FlowContext) error
	flowRuns   int
	roots      []program.Tree
}

func newHost() *host {
	return &host{
		decls:      make(map[program.Element]program.Tree),
		types:      make(map[any]func() atm.AnnotatedType),
		typeArgs:   make(map[program.Tree]func() map[program.Element]atm.AnnotatedType),
		typeParams: make(map[program.Element][]program.Element),
	}
}

func (h *host) skeleton(key any) atm.AnnotatedType {
	if mk, ok := h.types[key]; ok {
		return mk()
	}
	return atm.NewPrimitive("string")
}

func (h *host) DeclarationFromElement(e program.Element) (program.Tree, bool) {
	decl, ok := h.decls[e]
	return decl, ok
}

func (h *host) ElementType(e program.Element) (atm.AnnotatedType, error) { return h.skeleton(e), nil }
func (h *host) TreeType(t program.Tree) (atm.AnnotatedType, error)       { return h.skeleton(t), nil }

func (h *host) ElementOfTree(t program.Tree) (program.Element, bool) {
	node, ok := t.(*program.Node)
	if !ok || node.Elem == nil {
		return nil, false
	}
	return node.Elem, true
}

func (h *host) FindTypeArguments(call program.InvocationTree) (map[program.Element]atm.AnnotatedType, error) {
	if mk, ok := h.typeArgs[call]; ok {
		return mk(), nil
	}
	return nil, nil
}

func (h *host) TypeParameters(e program.Element) []program.Element { return h.typeParams[e] }

func (h *host) EnclosingClass(program.Tree) (program.Tree, bool) {
	return h.class, h.class != nil
}

func (h *host) RunFlow(_ program.Tree, flow factory.FlowContext) error {
	h.flowRuns++
	if h.flow == nil {
		return nil
	}
	return h.flow(flow)
}

func (h *host) SetRoot(root program.Tree) { h.roots = append(h.roots, root) }

type oracle struct {
	known map[program.Element]lattice.Qualifier
}

func (o *oracle) AnnotatedTypeOf(e program.Element) (atm.AnnotatedType, error) {
	t := atm.NewPrimitive("string")
	if q, ok := o.known[e]; ok {
		t.AddAnnotation(atm.Real(q))
	}
	return t, nil
}

func (*oracle) SetRoot(program.Tree) {}

type fixture struct {
	s *session.Session
	h *host
	o *oracle
	f *factory.Factory
}

func newFixture() *fixture {
	s := session.New()
	h := newHost()
	o := &oracle{known: make(map[program.Element]lattice.Qualifier)}
	return &fixture{s: s, h: h, o: o, f: factory.New(s, hardcoded.New(), h, o)}
}

func at(line int) model.Location {
	return model.Location{File: "a.go", Line: line, Column: 2}
}

func (x *fixture) declare(kind program.ElementKind, name string, line int) (*program.Symbol, *program.Node) {
	sym := program.NewSymbol(kind, name)
	decl := &program.Node{Kind: program.VariableDecl, Loc: at(line), Elem: sym}
	x.h.decls[sym] = decl
	return sym, decl
}

func (x *fixture) use(e program.Element, line int) *program.Node {
	return &program.Node{Kind: program.Identifier, Loc: at(line), Elem: e}
}

func (x *fixture) assign(variable, value program.Tree, line int) *program.Node {
	return &program.Node{Kind: program.Assignment, Loc: at(line), Children: []program.Tree{variable, value}}
}

func (x *fixture) slotOf(t *testing.T, typ atm.AnnotatedType) model.Slot {
	t.Helper()
	require.Len(t, typ.Annotations(), 1)
	slot, err := x.s.Slots.Slot(typ.Annotations()[0])
	require.NoError(t, err)
	return slot
}

func (x *fixture) elementSlot(t *testing.T, e program.Element) model.Slot {
	t.Helper()
	typ, err := x.f.AnnotatedTypeOfElement(e)
	require.NoError(t, err)
	return x.slotOf(t, typ)
}

func (x *fixture) treeSlot(t *testing.T, tree program.Tree) model.Slot {
	t.Helper()
	typ, err := x.f.AnnotatedTypeOfTree(tree)
	require.NoError(t, err)
	return x.slotOf(t, typ)
}

func TestElementTypeIsStable(t *testing.T) {
	x := newFixture()
	v, _ := x.declare(program.LocalVariable, "v", 3)

	first := x.elementSlot(t, v)
	count := x.s.Slots.Len()
	assert.Same(t, first, x.elementSlot(t, v))
	assert.Equal(t, count, x.s.Slots.Len())
}

func TestElementsWithoutSourceUseOracle(t *testing.T) {
	x := newFixture()
	known := program.NewSymbol(program.Field, "Secret")
	unknown := program.NewSymbol(program.Field, "Name")
	x.o.known[known] = hardcoded.MaybeHardcoded

	knownSlot := x.elementSlot(t, known)
	require.IsType(t, &model.ConstantSlot{}, knownSlot)
	assert.Equal(t, hardcoded.MaybeHardcoded, knownSlot.(*model.ConstantSlot).Value())

	unknownSlot := x.elementSlot(t, unknown)
	require.IsType(t, &model.ConstantSlot{}, unknownSlot)
	assert.Equal(t, hardcoded.NotHardcoded, unknownSlot.(*model.ConstantSlot).Value())

	count := x.s.Slots.Len()
	x.elementSlot(t, known)
	assert.Equal(t, count, x.s.Slots.Len())
}

// method declares m(int) string
func (x *fixture) method(name string, line int) *program.Symbol {
	m := program.NewSymbol(program.Method, name)
	x.h.decls[m] = &program.Node{Kind: program.MethodDecl, Loc: at(line), Elem: m}
	x.h.types[m] = func() atm.AnnotatedType {
		return &atm.Executable{
			Element: m,
			Params:  []atm.AnnotatedType{atm.NewPrimitive("int")},
			Return:  atm.NewPrimitive("string"),
		}
	}
	return m
}

// genericMethod declares id[T any](T) T
func (x *fixture) genericMethod(line int) (*program.Symbol, *program.Symbol) {
	param := program.NewSymbol(program.TypeParameter, "T")
	x.h.decls[param] = &program.Node{Kind: program.TypeParameterDecl, Loc: at(line), Elem: param}
	bound := func() atm.AnnotatedType { return atm.NewTypeVariable(param, atm.NewDeclared("any"), nil) }
	x.h.types[param] = bound

	m := program.NewSymbol(program.Method, "id")
	x.h.decls[m] = &program.Node{Kind: program.MethodDecl, Loc: at(line), Elem: m}
	x.h.types[m] = func() atm.AnnotatedType {
		return &atm.Executable{
			Element:  m,
			Params:   []atm.AnnotatedType{atm.NewTypeVariable(param, nil, nil)},
			Return:   atm.NewTypeVariable(param, nil, nil),
			TypeVars: []*atm.TypeVariable{bound().(*atm.TypeVariable)},
		}
	}
	x.h.typeParams[m] = []program.Element{param}
	return m, param
}

func TestNonGenericCallIsNotSubstituted(t *testing.T) {
	x := newFixture()
	m := x.method("f", 1)
	call := &program.Node{Kind: program.MethodInvocation, Loc: at(5), Elem: m}

	exe, args, err := x.f.MethodFromUse(call)
	require.NoError(t, err)
	assert.Empty(t, args)

	declared, err := x.f.AnnotatedTypeOfElement(m)
	require.NoError(t, err)
	assert.Equal(t, declared.String(), exe.String())
	assert.Equal(t, declared.(*atm.Executable).Return.Annotations(), exe.Return.Annotations())
}

func TestGenericCallIsSubstituted(t *testing.T) {
	x := newFixture()
	m, param := x.genericMethod(1)
	call := &program.Node{Kind: program.MethodInvocation, Loc: at(6), Elem: m}
	x.h.typeArgs[call] = func() map[program.Element]atm.AnnotatedType {
		return map[program.Element]atm.AnnotatedType{param: atm.NewPrimitive("string")}
	}

	exe, args, err := x.f.MethodFromUse(call)
	require.NoError(t, err)
	require.Len(t, args, 1)
	argSlot := x.slotOf(t, args[0])
	assert.Equal(t, "a.go:6:2#typearg0", argSlot.Location().String())

	require.Len(t, exe.Params, 1)
	assert.Equal(t, atm.KindPrimitive, exe.Params[0].Kind())
	assert.Same(t, argSlot, x.slotOf(t, exe.Params[0]))
	assert.Same(t, argSlot, x.slotOf(t, exe.Return))
	assert.Empty(t, exe.TypeVars)

	// the declaration keeps its type variables
	declared, err := x.f.AnnotatedTypeOfElement(m)
	require.NoError(t, err)
	assert.Equal(t, atm.KindTypeVariable, declared.(*atm.Executable).Params[0].Kind())

	// and the call itself has the type of the substituted return
	assert.Same(t, argSlot, x.treeSlot(t, call))
}

func TestTypeVariableUsesAreExistential(t *testing.T) {
	x := newFixture()
	m, _ := x.genericMethod(1)

	declared, err := x.f.AnnotatedTypeOfElement(m)
	require.NoError(t, err)
	use := x.slotOf(t, declared.(*atm.Executable).Params[0])
	require.IsType(t, &model.ExistentialVariableSlot{}, use)
	bound := x.slotOf(t, declared.(*atm.Executable).TypeVars[0].UpperBound)
	assert.Same(t, bound, use.(*model.ExistentialVariableSlot).Alternative())
}

func TestMissingTypeArgument(t *testing.T) {
	x := newFixture()
	m, _ := x.genericMethod(1)
	other := program.NewSymbol(program.TypeParameter, "U")
	call := &program.Node{Kind: program.MethodInvocation, Loc: at(6), Elem: m}
	x.h.typeArgs[call] = func() map[program.Element]atm.AnnotatedType {
		return map[program.Element]atm.AnnotatedType{other: atm.NewPrimitive("string")}
	}

	_, _, err := x.f.MethodFromUse(call)
	require.ErrorIs(t, err, ierr.ErrMissingTypeArgument)
	assert.Contains(t, err.Error(), "[T]")
	assert.NotEmpty(t, x.s.Failures)
}

func TestConstructorReturnsSiteType(t *testing.T) {
	x := newFixture()
	ctor := program.NewSymbol(program.Constructor, "NewBox")
	x.h.decls[ctor] = &program.Node{Kind: program.MethodDecl, Loc: at(1), Elem: ctor}
	x.h.types[ctor] = func() atm.AnnotatedType {
		return &atm.Executable{Element: ctor, Return: atm.NewDeclared("Box")}
	}
	site := &program.Node{Kind: program.NewClass, Loc: at(7), Elem: ctor}
	x.h.types[site] = func() atm.AnnotatedType { return atm.NewDeclared("Box") }

	exe, _, err := x.f.ConstructorFromUse(site)
	require.NoError(t, err)
	assert.Same(t, x.treeSlot(t, site), x.slotOf(t, exe.Return))
}

func TestRefineOutsideFlow(t *testing.T) {
	x := newFixture()
	v, _ := x.declare(program.LocalVariable, "v", 3)
	err := x.f.Refine(x.assign(x.use(v, 4), x.use(v, 4), 4))
	require.ErrorIs(t, err, ierr.ErrNotInFlow)
}

func TestConditionalJoinsBranches(t *testing.T) {
	x := newFixture()
	a, _ := x.declare(program.LocalVariable, "a", 1)
	b, _ := x.declare(program.LocalVariable, "b", 2)
	cond := &program.Node{Kind: program.Literal, Loc: at(3), Literal: program.BoolLiteral}
	conditional := &program.Node{
		Kind:     program.Conditional,
		Loc:      at(3),
		Children: []program.Tree{cond, x.use(a, 3), x.use(b, 3)},
	}

	s1, s2 := x.elementSlot(t, a), x.elementSlot(t, b)
	c := x.treeSlot(t, conditional)
	require.IsType(t, &model.CombVariableSlot{}, c)
	assert.NotSame(t, s1, c)
	assert.NotSame(t, s2, c)
	assert.ElementsMatch(t, []model.Constraint{
		model.NewSubtype(s1, c),
		model.NewSubtype(s2, c),
	}, x.s.Constraints.All())
}

func TestAssignmentBetweenVariables(t *testing.T) {
	x := newFixture()
	xVar, xDecl := x.declare(program.LocalVariable, "x", 1)
	yVar, _ := x.declare(program.LocalVariable, "y", 2)
	yRead := x.use(yVar, 3)
	assignment := x.assign(x.use(xVar, 3), yRead, 3)
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}
	x.h.flow = func(flow factory.FlowContext) error {
		if _, err := flow.AnnotatedTypeOfTree(xDecl); err != nil {
			return err
		}
		if _, err := flow.AnnotatedTypeOfTree(yRead); err != nil {
			return err
		}
		return flow.Refine(assignment)
	}

	// the regular traversal visits the declaration again, after flow
	xSlot := x.treeSlot(t, xDecl)
	ySlot := x.treeSlot(t, yRead)
	variables := 0
	for _, slot := range x.s.Slots.Slots() {
		if slot.Kind() == model.KindVariable && slot.Location().Path == "x/type" {
			variables++
		}
	}
	assert.Equal(t, 1, variables)

	// checking the assignment
	yType, err := x.f.AnnotatedTypeOfTree(yRead)
	require.NoError(t, err)
	xType, err := x.f.AnnotatedTypeOfElement(xVar)
	require.NoError(t, err)
	holds, err := x.f.Types().IsSubtype(yType, xType)
	require.NoError(t, err)
	assert.True(t, holds)

	assert.True(t, x.s.Constraints.Contains(model.NewSubtype(ySlot, xSlot)))
	assert.False(t, x.s.Constraints.Contains(model.NewSubtype(xSlot, ySlot)))
}

func TestRefinementsAreConstrainedAfterFlow(t *testing.T) {
	x := newFixture()
	v, _ := x.declare(program.LocalVariable, "v", 1)
	lit := &program.Node{Kind: program.Literal, Loc: at(2), Literal: program.StringLiteral}
	assignment := x.assign(x.use(v, 2), lit, 2)
	read := x.use(v, 3)
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}

	var refined model.Slot
	x.h.flow = func(flow factory.FlowContext) error {
		if err := flow.Refine(assignment); err != nil {
			return err
		}
		assert.Zero(t, x.s.Constraints.Len(), "refinements are only constrained once flow ends")
		typ, err := flow.AnnotatedTypeOfTree(read)
		if err != nil {
			return err
		}
		refined = x.slotOf(t, typ)
		return nil
	}

	require.NoError(t, x.f.PerformFlowAnalysis(x.h.class))
	require.IsType(t, &model.RefinementVariableSlot{}, refined)
	declared := x.elementSlot(t, v)
	assert.Same(t, declared, refined.(*model.RefinementVariableSlot).Refined())
	assert.Equal(t, at(2), refined.Location())

	value := x.treeSlot(t, lit)
	assert.Equal(t, []model.Constraint{
		model.NewSubtype(refined, declared),
		model.NewEquality(refined, value),
	}, x.s.Constraints.All())

	// reads seen during flow keep their refinement
	assert.Same(t, refined, x.treeSlot(t, read))
	assert.Same(t, declared, x.treeSlot(t, x.use(v, 4)))
}

func TestFailedFlowDropsItsRefinements(t *testing.T) {
	x := newFixture()
	v, _ := x.declare(program.LocalVariable, "v", 1)
	lit := &program.Node{Kind: program.Literal, Loc: at(2), Literal: program.StringLiteral}
	assignment := x.assign(x.use(v, 2), lit, 2)
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}
	x.h.flow = func(flow factory.FlowContext) error {
		if err := flow.Refine(assignment); err != nil {
			return err
		}
		return errors.New("flow broke")
	}
	require.EqualError(t, x.f.PerformFlowAnalysis(x.h.class), "flow broke")
	assert.False(t, x.s.PerformingFlow())

	// a later pass over another class must not constrain the abandoned refinement
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(5)}
	x.h.flow = nil
	require.NoError(t, x.f.PerformFlowAnalysis(x.h.class))
	assert.Zero(t, x.s.Constraints.Len())
}

func TestFailingTreeIsRecordedOnce(t *testing.T) {
	x := newFixture()
	unhandled := &program.Node{Kind: program.CompilationUnit, Loc: at(1)}

	_, first := x.f.AnnotatedTypeOfTree(unhandled)
	require.ErrorIs(t, first, ierr.ErrUnhandledTree)
	_, second := x.f.AnnotatedTypeOfTree(unhandled)
	require.ErrorIs(t, second, ierr.ErrUnhandledTree)
	assert.Len(t, x.s.Failures, 1)

	x.f.SetRoot(&program.Node{Kind: program.CompilationUnit})
	_, err := x.f.AnnotatedTypeOfTree(unhandled)
	require.ErrorIs(t, err, ierr.ErrUnhandledTree)
	assert.Len(t, x.s.Failures, 2)
}

func TestFieldsAreNotRefined(t *testing.T) {
	x := newFixture()
	field, _ := x.declare(program.Field, "name", 1)
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}
	x.h.flow = func(flow factory.FlowContext) error {
		return flow.Refine(x.assign(x.use(field, 2), x.use(field, 2), 2))
	}

	require.NoError(t, x.f.PerformFlowAnalysis(x.h.class))
	for _, slot := range x.s.Slots.Slots() {
		assert.NotEqual(t, model.KindRefinementVariable, slot.Kind())
	}
}

func TestFlowRunsOncePerClass(t *testing.T) {
	x := newFixture()
	v, decl := x.declare(program.LocalVariable, "v", 1)
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}

	x.treeSlot(t, decl)
	x.treeSlot(t, x.use(v, 2))
	assert.Equal(t, 1, x.h.flowRuns)

	root := &program.Node{Kind: program.CompilationUnit}
	x.f.SetRoot(root)
	assert.Equal(t, []program.Tree{root}, x.h.roots)
	x.treeSlot(t, x.use(v, 2))
	assert.Equal(t, 2, x.h.flowRuns)
}

func TestRefineSkipsTreesWithoutVariable(t *testing.T) {
	x := newFixture()
	x.h.class = &program.Node{Kind: program.ClassDecl, Loc: at(1)}
	x.h.flow = func(flow factory.FlowContext) error {
		return flow.Refine(&program.Node{Kind: program.Assignment, Loc: at(2)})
	}
	require.NoError(t, x.f.PerformFlowAnalysis(x.h.class))
	assert.False(t, x.s.PerformingFlow())
}

func TestSetRootForgetsLocals(t *testing.T) {
	x := newFixture()
	local, _ := x.declare(program.LocalVariable, "v", 1)
	field, _ := x.declare(program.Field, "name", 2)
	localSlot, fieldSlot := x.elementSlot(t, local), x.elementSlot(t, field)

	x.f.SetRoot(&program.Node{Kind: program.CompilationUnit})

	assert.NotSame(t, localSlot, x.elementSlot(t, local))
	assert.Same(t, fieldSlot, x.elementSlot(t, field))
	assert.Contains(t, x.s.Slots.Slots(), localSlot, "slots are kept for the whole session")
}

func TestPostDirectSuperTypes(t *testing.T) {
	x := newFixture()
	v, _ := x.declare(program.LocalVariable, "v", 1)
	use, err := x.f.AnnotatedTypeOfElement(v)
	require.NoError(t, err)

	super := atm.NewDeclared("Stringer")
	super.AddAnnotation(atm.Real(hardcoded.MaybeHardcoded))
	x.f.PostDirectSuperTypes(use, []atm.AnnotatedType{super})
	assert.Equal(t, use.Annotations(), super.Annotations())
}

func TestTypeVariablesFromUse(t *testing.T) {
	x := newFixture()
	_, param := x.genericMethod(1)
	class := program.NewSymbol(program.Class, "Box")
	x.h.typeParams[class] = []program.Element{param}

	vars, err := x.f.TypeVariablesFromUse(atm.NewDeclared("Box", atm.NewPrimitive("int")), class)
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "a.go:1:2#T", x.slotOf(t, vars[0]).Location().String())
}

func TestAsMemberOf(t *testing.T) {
	x := newFixture()
	key := program.NewSymbol(program.TypeParameter, "K")
	class := program.NewSymbol(program.Class, "Pair")
	x.h.typeParams[class] = []program.Element{key}
	arg := atm.NewPrimitive("string")
	arg.AddAnnotation(atm.Real(hardcoded.MaybeHardcoded))
	owner := atm.NewDeclared("Pair", arg)
	owner.Element = class
	member := atm.NewTypeVariable(key, nil, nil)

	tests := []struct {
		name  string
		owner atm.AnnotatedType
	}{
		{"value", owner},
		{"pointer", atm.NewDeclared("*", owner)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := x.f.AsMemberOf(member, tt.owner)
			require.Equal(t, atm.KindPrimitive, seen.Kind())
			assert.Equal(t, arg.Annotations(), seen.Annotations())
			assert.NotSame(t, arg, seen)
		})
	}

	// members of non generic owners are left alone
	plain := atm.NewDeclared("Config")
	assert.Same(t, member, x.f.AsMemberOf(member, plain))
	assert.Same(t, member, x.f.AsMemberOf(member, atm.NewPrimitive("int")))
}
