// Package factory computes the annotated types of elements and trees during inference.
//
// It ties the pieces of a session together: the host supplies unannotated types, the
// annotator gives them slots, and flow-sensitive refinement runs once per enclosing class
// before any of its trees is queried.
package factory

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cottand/qinfer/inference/annotator"
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/hierarchy"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
	"github.com/cottand/qinfer/inference/session"
	"github.com/cottand/qinfer/inference/typesys"
	"github.com/cottand/qinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference/factory")

type Factory struct {
	session    *session.Session
	system     typesys.System
	host       Host
	oracle     RealOracle
	qualifiers *hierarchy.QualifierHierarchy
	types      *hierarchy.TypeHierarchy
	annotator  *annotator.VariableAnnotator

	// scanned are the classes flow analysis already ran for
	scanned map[program.Tree]bool
	// latest is the refinement each local holds at the current point of a flow pass
	latest map[program.Element]*model.RefinementVariableSlot
	// flowValues are the refined qualifiers of the variable reads seen during flow
	flowValues  map[program.Tree]atm.Annotation
	refinements map[program.Tree]*model.RefinementVariableSlot
	// unconstrained are refinements made in the current flow pass, constrained once it ends
	unconstrained []refinement
	// failed are the trees whose annotation already failed, so each failure is recorded once
	failed map[program.Tree]error
}

type refinement struct {
	slot     *model.RefinementVariableSlot
	declared model.Slot
	value    program.Tree
}

func New(s *session.Session, system typesys.System, host Host, oracle RealOracle) *Factory {
	f := &Factory{
		session:     s,
		system:      system,
		host:        host,
		oracle:      oracle,
		scanned:     make(map[program.Tree]bool),
		latest:      make(map[program.Element]*model.RefinementVariableSlot),
		flowValues:  make(map[program.Tree]atm.Annotation),
		refinements: make(map[program.Tree]*model.RefinementVariableSlot),
		failed:      make(map[program.Tree]error),
	}
	f.qualifiers = hierarchy.NewQualifierHierarchy(s, system.Lattice())
	f.types = hierarchy.NewTypeHierarchy(s, f.qualifiers)
	f.annotator = annotator.NewVariableAnnotator(s, system, f.qualifiers, f)
	return f
}

func (f *Factory) Session() *session.Session                 { return f.session }
func (f *Factory) System() typesys.System                    { return f.system }
func (f *Factory) Qualifiers() *hierarchy.QualifierHierarchy { return f.qualifiers }
func (f *Factory) Types() *hierarchy.TypeHierarchy           { return f.types }
func (f *Factory) Annotator() *annotator.VariableAnnotator   { return f.annotator }

// AnnotatedTypeOfElement returns the type of e with a slot at each position. The first
// call for an element resolves it, from its declaration if the host has its source and
// from the real oracle otherwise. Later calls reuse the same slots
func (f *Factory) AnnotatedTypeOfElement(e program.Element) (atm.AnnotatedType, error) {
	if t, ok := f.annotator.Pending(e); ok {
		return t, nil
	}
	t, err := f.host.ElementType(e)
	if err != nil {
		return nil, f.session.Fail(err)
	}
	found, err := f.annotator.AnnotateElementFromStore(e, t)
	if err != nil {
		return nil, err
	}
	if found {
		return t, nil
	}

	if decl, ok := f.host.DeclarationFromElement(e); ok {
		leave := f.session.Enter(e.Name())
		defer leave()
		if err := f.annotator.AnnotateTree(decl, t); err != nil {
			return nil, err
		}
		return t, nil
	}

	oracleType, err := f.oracle.AnnotatedTypeOf(e)
	if err != nil {
		return nil, f.session.Fail(err)
	}
	if err := f.annotator.WrapReal(oracleType); err != nil {
		return nil, err
	}
	f.annotator.StoreElementType(e, oracleType)
	logger.Debug("annotated element from real oracle", "element", e.Name(), "type", oracleType)
	return oracleType, nil
}

// AnnotatedTypeOfTree returns the type of t with a slot at each position, refined by
// flow analysis. Outside of flow, the flow pass of the class enclosing t runs first
func (f *Factory) AnnotatedTypeOfTree(t program.Tree) (atm.AnnotatedType, error) {
	if !f.session.PerformingFlow() {
		if class, ok := f.host.EnclosingClass(t); ok {
			if err := f.PerformFlowAnalysis(class); err != nil {
				return nil, err
			}
		}
	}
	if err, ok := f.failed[t]; ok {
		return nil, err
	}
	leave := f.session.Enter(program.Path([]program.Tree{t})[0])
	defer leave()

	typ, err := f.host.TreeType(t)
	if err != nil {
		f.failed[t] = f.session.Fail(err)
		return nil, f.failed[t]
	}
	if err := f.annotator.AnnotateTree(t, typ); err != nil {
		f.failed[t] = err
		return nil, err
	}
	if t.TreeKind() == program.Identifier {
		f.applyFlowValue(t, typ)
	}
	return typ, nil
}

func (f *Factory) applyFlowValue(t program.Tree, typ atm.AnnotatedType) {
	if !f.session.PerformingFlow() {
		if anno, ok := f.flowValues[t]; ok {
			typ.ReplaceAnnotation(anno)
		}
		return
	}
	element, ok := f.host.ElementOfTree(t)
	if !ok {
		return
	}
	if refined, ok := f.latest[element]; ok {
		anno := f.session.Slots.Annotation(refined)
		typ.ReplaceAnnotation(anno)
		f.flowValues[t] = anno
	}
}

// PerformFlowAnalysis runs the flow pass over classTree, once per class. Refinements
// found during the pass are constrained after it ends
func (f *Factory) PerformFlowAnalysis(classTree program.Tree) error {
	if f.scanned[classTree] {
		return nil
	}
	f.scanned[classTree] = true
	err := f.session.WithFlow(func() error {
		return f.host.RunFlow(classTree, f)
	})
	clear(f.latest)
	pending := f.unconstrained
	f.unconstrained = nil
	if err != nil {
		return err
	}

	for _, r := range pending {
		value, err := f.AnnotatedTypeOfTree(r.value)
		if err != nil {
			return err
		}
		valueSlot, err := f.primarySlot(value)
		if err != nil {
			return err
		}
		f.session.Constraints.AddAll(
			model.NewSubtype(r.slot, r.declared),
			model.NewEquality(r.slot, valueSlot),
		)
	}
	return nil
}

// Refine records that the local variable assigned to by assignment holds a refinement
// of its declared qualifier from here on. Assignments to fields are not refined
func (f *Factory) Refine(assignment program.AssignmentTree) error {
	if !f.session.PerformingFlow() {
		return f.session.Fail(ierr.New(ierr.ErrNotInFlow, "cannot refine %v outside of a flow pass", assignment))
	}
	element, ok := f.host.ElementOfTree(assignment.Variable())
	if !ok || !element.ElementKind().IsLocal() {
		return nil
	}
	refined, ok := f.refinements[assignment]
	if !ok {
		declared, err := f.AnnotatedTypeOfElement(element)
		if err != nil {
			return err
		}
		declaredSlot, err := f.primarySlot(declared)
		if err != nil {
			return err
		}
		refined = f.session.Slots.CreateRefinementVariable(declaredSlot, assignment.Location())
		f.refinements[assignment] = refined
		f.unconstrained = append(f.unconstrained, refinement{
			slot:     refined,
			declared: declaredSlot,
			value:    assignment.Expression(),
		})
	}
	f.latest[element] = refined
	return nil
}

// MethodFromUse returns the type of the executable invoked by call, with its type
// parameters substituted by the type arguments of the call, and those type arguments
func (f *Factory) MethodFromUse(call program.InvocationTree) (*atm.Executable, []atm.AnnotatedType, error) {
	return f.fromUse(call)
}

// ConstructorFromUse is MethodFromUse for a constructor invocation. The returned
// executable returns the type of the allocation site
func (f *Factory) ConstructorFromUse(newClass program.InvocationTree) (*atm.Executable, []atm.AnnotatedType, error) {
	exe, args, err := f.fromUse(newClass)
	if err != nil {
		return nil, nil, err
	}
	site, err := f.AnnotatedTypeOfTree(newClass)
	if err != nil {
		return nil, nil, err
	}
	if exe.Return != nil && exe.Return.Kind() == site.Kind() {
		if err := atm.CopyAnnotations(site, exe.Return); err != nil {
			return nil, nil, f.session.Fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "constructor of %v does not return its site type: %v", newClass, err), exe, site))
		}
	}
	return exe, args, nil
}

func (f *Factory) fromUse(call program.InvocationTree) (*atm.Executable, []atm.AnnotatedType, error) {
	invoked := call.Invoked()
	if invoked == nil {
		return nil, nil, f.session.Fail(ierr.New(ierr.ErrUnhandledTree, "%v does not invoke a known executable", call))
	}
	declared, err := f.AnnotatedTypeOfElement(invoked)
	if err != nil {
		return nil, nil, err
	}
	exe, ok := declared.(*atm.Executable)
	if !ok {
		return nil, nil, f.session.Fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "%s is invoked but has type %v", invoked.Name(), declared), declared))
	}
	exe = atm.DeepCopy(exe)

	mapping, err := f.host.FindTypeArguments(call)
	if err != nil {
		return nil, nil, f.session.Fail(err)
	}
	params := f.host.TypeParameters(invoked)
	for i, param := range params {
		if arg, ok := mapping[param]; ok {
			if err := f.annotator.AnnotateSite(call, "typearg"+strconv.Itoa(i), arg); err != nil {
				return nil, nil, err
			}
		}
	}
	return f.substituteTypeArgs(exe, params, mapping)
}

// substituteTypeArgs replaces the uses of params in exe by their arguments in mapping,
// and returns the arguments in the order of params
func (f *Factory) substituteTypeArgs(exe *atm.Executable, params []program.Element, mapping map[program.Element]atm.AnnotatedType) (*atm.Executable, []atm.AnnotatedType, error) {
	if len(mapping) == 0 {
		return exe, nil, nil
	}
	args := make([]atm.AnnotatedType, 0, len(params))
	var missing []string
	for _, param := range params {
		arg, ok := mapping[param]
		if !ok {
			missing = append(missing, param.Name())
			continue
		}
		args = append(args, arg)
	}
	if len(missing) > 0 {
		err := ierr.New(ierr.ErrMissingTypeArgument,
			"type parameters [%s] of %v are missing from its inferred type arguments %s",
			strings.Join(missing, ", "), exe, mappingString(mapping))
		return nil, nil, f.session.Fail(ierr.WithPath(ierr.WithTypes(err, exe), f.session.CurrentPath()))
	}
	return atm.Substitute(exe, mapping), args, nil
}

func mappingString(mapping map[program.Element]atm.AnnotatedType) string {
	entries := make([]string, 0, len(mapping))
	for param, arg := range mapping {
		entries = append(entries, param.Name()+"="+arg.String())
	}
	slices.Sort(entries)
	return "{" + strings.Join(entries, ", ") + "}"
}

// PostDirectSuperTypes gives each direct supertype of a use the qualifiers of the use
func (f *Factory) PostDirectSuperTypes(use atm.AnnotatedType, supertypes []atm.AnnotatedType) {
	annos := use.Annotations()
	for _, super := range supertypes {
		if slices.Equal(super.Annotations(), annos) {
			continue
		}
		super.ClearAnnotations()
		for _, anno := range annos {
			super.AddAnnotation(anno)
		}
	}
}

// TypeVariablesFromUse returns the declared type parameters of class, annotated by
// their declarations
func (f *Factory) TypeVariablesFromUse(use *atm.Declared, class program.Element) ([]*atm.TypeVariable, error) {
	params := f.host.TypeParameters(class)
	vars := make([]*atm.TypeVariable, 0, len(params))
	for _, param := range params {
		t, err := f.AnnotatedTypeOfElement(param)
		if err != nil {
			return nil, err
		}
		tv, ok := t.(*atm.TypeVariable)
		if !ok {
			return nil, f.session.Fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "type parameter %s of %v has type %v", param.Name(), use, t), use, t))
		}
		vars = append(vars, tv)
	}
	return vars, nil
}

// AsMemberOf is the type of member, declared in a generic class, as seen through owner,
// a use of that class. The type parameters of the class are replaced by copies of the
// type arguments of owner, so the slots of the use are shared. A pointer owner, a
// declared type with no element and one argument, is looked through
func (f *Factory) AsMemberOf(member, owner atm.AnnotatedType) atm.AnnotatedType {
	class, ok := owner.(*atm.Declared)
	if ok && class.Element == nil && len(class.TypeArgs) == 1 {
		class, ok = class.TypeArgs[0].(*atm.Declared)
	}
	if !ok || class.Element == nil || len(class.TypeArgs) == 0 {
		return member
	}
	params := f.host.TypeParameters(class.Element)
	if len(params) != len(class.TypeArgs) {
		return member
	}
	mapping := make(map[program.Element]atm.AnnotatedType, len(params))
	for i, param := range params {
		mapping[param] = class.TypeArgs[i]
	}
	return atm.Substitute(member, mapping)
}

// PostAsMemberOf is called with the type of member as seen from owner. Receiver and
// parameter positions generate no constraints yet
func (f *Factory) PostAsMemberOf(member atm.AnnotatedType, owner atm.AnnotatedType, element program.Element) error {
	logger.Debug("member access", "member", element.Name(), "type", member, "owner", owner)
	return nil
}

// SetRoot is called when the compilation unit under inference changes. Slots and
// constraints accumulate for the whole session, everything local to the previous unit
// is forgotten
func (f *Factory) SetRoot(root program.Tree) {
	f.host.SetRoot(root)
	f.oracle.SetRoot(root)
	f.annotator.ForgetLocals()
	clear(f.scanned)
	clear(f.latest)
	clear(f.flowValues)
	clear(f.refinements)
	clear(f.failed)
	f.unconstrained = nil
}

func (f *Factory) primarySlot(t atm.AnnotatedType) (model.Slot, error) {
	annos := t.Annotations()
	if len(annos) != 1 {
		return nil, f.session.Fail(ierr.WithPath(
			ierr.WithTypes(ierr.New(ierr.ErrUnsupportedRawType, "expected exactly 1 annotation on %v, found %d", t, len(annos)), t),
			f.session.CurrentPath(),
		))
	}
	slot, err := f.session.Slots.Slot(annos[0])
	if err != nil {
		return nil, f.session.Fail(err)
	}
	return slot, nil
}
