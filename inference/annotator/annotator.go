// Package annotator assigns slots to the inferable positions of a program.
//
// The VariableAnnotator guarantees one slot per program location: element types are
// memoized for the whole session, and every slot created for a tree is memoized per
// tree, so revisiting any part of the program never creates a second slot for it.
package annotator

import (
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/hierarchy"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
	"github.com/cottand/qinfer/inference/session"
	"github.com/cottand/qinfer/inference/typesys"
	"github.com/cottand/qinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference/annotator")

// Resolver computes the types of other program parts a tree depends on
type Resolver interface {
	AnnotatedTypeOfElement(e program.Element) (atm.AnnotatedType, error)
	AnnotatedTypeOfTree(t program.Tree) (atm.AnnotatedType, error)
	MethodFromUse(call program.InvocationTree) (*atm.Executable, []atm.AnnotatedType, error)
	// AsMemberOf is the declared type of a member seen through the type of its receiver
	AsMemberOf(member, owner atm.AnnotatedType) atm.AnnotatedType
}

// TreeHandler annotates t, the unannotated type of tree
type TreeHandler func(a *VariableAnnotator, tree program.Tree, t atm.AnnotatedType) error

type siteKey struct {
	tree program.Tree
	key  string
}

type VariableAnnotator struct {
	session    *session.Session
	system     typesys.System
	qualifiers *hierarchy.QualifierHierarchy
	resolver   Resolver
	handlers   map[program.TreeKind]TreeHandler

	elements map[program.Element]atm.AnnotatedType
	// pending are elements whose declaration is being annotated
	pending map[program.Element]atm.AnnotatedType
	// trees holds the results for non-declaration trees computed outside of flow
	trees map[program.Tree]atm.AnnotatedType
	// sites holds the types of positions owned by a tree, e.g. a literal
	sites map[siteKey]atm.AnnotatedType
}

func NewVariableAnnotator(s *session.Session, system typesys.System, qualifiers *hierarchy.QualifierHierarchy, resolver Resolver) *VariableAnnotator {
	a := &VariableAnnotator{
		session:    s,
		system:     system,
		qualifiers: qualifiers,
		resolver:   resolver,
		elements:   make(map[program.Element]atm.AnnotatedType),
		pending:    make(map[program.Element]atm.AnnotatedType),
		trees:      make(map[program.Tree]atm.AnnotatedType),
		sites:      make(map[siteKey]atm.AnnotatedType),
	}
	a.handlers = map[program.TreeKind]TreeHandler{
		program.ClassDecl:         (*VariableAnnotator).visitClass,
		program.MethodDecl:        (*VariableAnnotator).visitMethod,
		program.VariableDecl:      (*VariableAnnotator).visitVariable,
		program.TypeParameterDecl: (*VariableAnnotator).visitTypeParameter,
		program.Literal:           (*VariableAnnotator).visitLiteral,
		program.Identifier:        (*VariableAnnotator).visitElementUse,
		program.MemberSelect:      (*VariableAnnotator).visitElementUse,
		program.MethodInvocation:  (*VariableAnnotator).visitInvocation,
		program.NewClass:          (*VariableAnnotator).visitNewSite,
		program.NewArray:          (*VariableAnnotator).visitNewSite,
		program.TypeCast:          (*VariableAnnotator).visitNewSite,
		program.Assignment:        (*VariableAnnotator).visitAssignment,
		program.Conditional:       (*VariableAnnotator).visitJoin,
		program.Binary:            (*VariableAnnotator).visitJoin,
		program.Unary:             (*VariableAnnotator).visitOperand,
		program.Parenthesized:     (*VariableAnnotator).visitOperand,
	}
	return a
}

// Handle replaces the handler for kind
func (a *VariableAnnotator) Handle(kind program.TreeKind, handler TreeHandler) {
	a.handlers[kind] = handler
}

// AnnotateElementFromStore copies the stored annotations of element onto t. It reports
// false, leaving t untouched, if element was never stored
func (a *VariableAnnotator) AnnotateElementFromStore(element program.Element, t atm.AnnotatedType) (bool, error) {
	stored, ok := a.elements[element]
	if !ok {
		return false, nil
	}
	if err := atm.CopyAnnotations(stored, t); err != nil {
		return false, a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "stored type of %s does not fit: %v", element.Name(), err), stored, t))
	}
	return true, nil
}

// StoreElementType records the fully annotated type of element. Only the first call per
// element has an effect
func (a *VariableAnnotator) StoreElementType(element program.Element, t atm.AnnotatedType) {
	if _, ok := a.elements[element]; ok {
		logger.Debug("element type already stored", "element", element.Name())
		return
	}
	a.elements[element] = atm.DeepCopy(t)
}

// Pending returns the type of element while its declaration is being annotated
func (a *VariableAnnotator) Pending(element program.Element) (atm.AnnotatedType, bool) {
	t, ok := a.pending[element]
	return t, ok
}

// AnnotateTree annotates t, the type of tree, dispatching on the tree's kind
func (a *VariableAnnotator) AnnotateTree(tree program.Tree, t atm.AnnotatedType) error {
	handler, ok := a.handlers[tree.TreeKind()]
	if !ok {
		return a.fail(ierr.New(ierr.ErrUnhandledTree, "no handler for %v (a %s)", tree, tree.TreeKind()))
	}
	if tree.TreeKind().IsDeclaration() {
		return a.annotateDeclaration(tree, t, handler)
	}

	flow := a.session.PerformingFlow()
	if !flow {
		if stored, ok := a.trees[tree]; ok {
			return a.copyStored(tree, stored, t)
		}
	}
	if err := handler(a, tree, t); err != nil {
		return err
	}
	// results computed during flow may hold real joins, which must not leak out of it
	if !flow {
		a.trees[tree] = atm.DeepCopy(t)
	}
	return nil
}

func (a *VariableAnnotator) annotateDeclaration(tree program.Tree, t atm.AnnotatedType, handler TreeHandler) error {
	declared, ok := tree.(program.ElementTree)
	if !ok || declared.Element() == nil {
		return a.fail(ierr.New(ierr.ErrUnhandledTree, "declaration %v does not declare an element", tree))
	}
	element := declared.Element()
	if found, err := a.AnnotateElementFromStore(element, t); found || err != nil {
		return err
	}
	if _, ok := a.pending[element]; ok {
		return a.fail(ierr.New(ierr.ErrUnhandledTree, "declaration of %s reached while annotating it", element.Name()))
	}
	a.pending[element] = t
	defer delete(a.pending, element)

	if err := handler(a, tree, t); err != nil {
		return err
	}
	a.StoreElementType(element, t)
	return nil
}

// WrapReal turns the real qualifiers of t, as given by an oracle, into constant slots.
// Positions the oracle left unannotated get the type system's default qualifier
func (a *VariableAnnotator) WrapReal(t atm.AnnotatedType) error {
	seen := make(map[atm.AnnotatedType]bool)
	var wrap atm.Visitor
	wrap = func(_ string, pos atm.AnnotatedType) error {
		if seen[pos] {
			return nil
		}
		seen[pos] = true
		q := a.system.DefaultQualifier()
		switch annos := pos.Annotations(); len(annos) {
		case 0:
		case 1:
			oracleQualifier, ok := annos[0].Qualifier()
			if !ok {
				return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnsupportedRawType, "oracle annotated %v with a slot marker", pos), pos))
			}
			q = oracleQualifier
		default:
			return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnsupportedRawType, "oracle annotated %v with %d qualifiers", pos, len(annos)), pos))
		}
		pos.ReplaceAnnotation(a.session.Slots.Annotation(a.session.Slots.ConstantFor(q)))
		if tv, ok := pos.(*atm.TypeVariable); ok {
			if err := atm.Walk(tv.UpperBound, wrap); err != nil {
				return err
			}
			return atm.Walk(tv.LowerBound, wrap)
		}
		return nil
	}
	return atm.Walk(t, wrap)
}

// ForgetLocals drops every memoized result which does not outlive its compilation unit
func (a *VariableAnnotator) ForgetLocals() {
	for element := range a.elements {
		if element.ElementKind().IsLocal() {
			delete(a.elements, element)
		}
	}
	clear(a.trees)
	clear(a.sites)
}

// annotateFresh gives every inferable position of t a fresh variable slot located
// under loc. Uses of type variables get an existential slot instead
func (a *VariableAnnotator) annotateFresh(loc model.Location, t atm.AnnotatedType) error {
	return atm.Walk(t, func(path string, pos atm.AnnotatedType) error {
		at := loc
		if path != "" {
			at = loc.At(path)
		}
		if tv, ok := pos.(*atm.TypeVariable); ok && tv.Decl != nil {
			return a.annotateTypeVariableUse(at, tv)
		}
		pos.ReplaceAnnotation(a.session.Slots.Annotation(a.session.Slots.CreateVariable(at)))
		return nil
	})
}

// annotateTypeVariableUse gives a use of a type variable an existential slot: either a
// qualifier of its own, or the one of the declared bound
func (a *VariableAnnotator) annotateTypeVariableUse(loc model.Location, use *atm.TypeVariable) error {
	declared, err := a.resolver.AnnotatedTypeOfElement(use.Decl)
	if err != nil {
		return err
	}
	declaredVar, ok := declared.(*atm.TypeVariable)
	if !ok {
		return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "type parameter %s has type %v", use.Decl.Name(), declared), declared))
	}
	alternative, err := a.alternativeOf(declaredVar)
	if err != nil {
		return err
	}
	potential := a.session.Slots.CreateVariable(loc)
	existential := a.session.Slots.CreateExistentialVariable(potential, alternative, loc)
	use.ReplaceAnnotation(a.session.Slots.Annotation(existential))
	use.UpperBound, use.LowerBound = declaredVar.UpperBound, declaredVar.LowerBound
	return nil
}

// alternativeOf is the slot of a type parameter's upper bound, or of the parameter
// itself while its bound is still being annotated
func (a *VariableAnnotator) alternativeOf(declared *atm.TypeVariable) (model.Slot, error) {
	if declared.UpperBound != nil && len(declared.UpperBound.Annotations()) == 1 {
		return a.primarySlot(declared.UpperBound)
	}
	return a.primarySlot(declared)
}

func (a *VariableAnnotator) primarySlot(t atm.AnnotatedType) (model.Slot, error) {
	annos := t.Annotations()
	if len(annos) != 1 {
		return nil, a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnsupportedRawType, "expected exactly 1 annotation on %v, found %d", t, len(annos)), t))
	}
	slot, err := a.session.Slots.Slot(annos[0])
	if err != nil {
		return nil, a.fail(err)
	}
	return slot, nil
}

// site annotates t, a position owned by tree, with slots made by create. The slots are
// made once per tree and key
func (a *VariableAnnotator) site(tree program.Tree, key string, t atm.AnnotatedType, create func(loc model.Location) model.Slot) error {
	k := siteKey{tree: tree, key: key}
	if stored, ok := a.sites[k]; ok {
		return a.copyStored(tree, stored, t)
	}
	loc := tree.Location()
	if key != "" {
		loc = loc.At(key)
	}
	err := atm.Walk(t, func(path string, pos atm.AnnotatedType) error {
		at := loc
		if path != "" {
			at = loc.At(path)
		}
		pos.ReplaceAnnotation(a.session.Slots.Annotation(create(at)))
		return nil
	})
	if err != nil {
		return err
	}
	a.sites[k] = atm.DeepCopy(t)
	return nil
}

// AnnotateSite gives t, a position owned by tree and told apart by key, fresh variable
// slots, once per tree and key
func (a *VariableAnnotator) AnnotateSite(tree program.Tree, key string, t atm.AnnotatedType) error {
	return a.site(tree, key, t, func(loc model.Location) model.Slot {
		return a.session.Slots.CreateVariable(loc)
	})
}

func (a *VariableAnnotator) copyStored(tree program.Tree, stored, t atm.AnnotatedType) error {
	if err := atm.CopyAnnotations(stored, t); err != nil {
		return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "memoized type of %v does not fit: %v", tree, err), stored, t))
	}
	return nil
}

func (a *VariableAnnotator) fail(err error) error {
	return a.session.Fail(ierr.WithPath(err, a.session.CurrentPath()))
}
