package annotator

import (
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
)

// declaredAt is where the positions of a declaration's type live, e.g. "x/type"
func declaredAt(tree program.ElementTree) model.Location {
	return tree.Location().At(tree.Element().Name()).At("type")
}

func (a *VariableAnnotator) visitVariable(tree program.Tree, t atm.AnnotatedType) error {
	return a.annotateFresh(declaredAt(tree.(program.ElementTree)), t)
}

func (a *VariableAnnotator) visitMethod(tree program.Tree, t atm.AnnotatedType) error {
	exe, ok := t.(*atm.Executable)
	if !ok {
		return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "method %v has non executable type %v", tree, t), t))
	}
	if err := a.annotateFresh(declaredAt(tree.(program.ElementTree)), exe); err != nil {
		return err
	}
	return a.copyTypeParameters(exe.TypeVars)
}

// visitClass annotates the type of a class declaration. Its type arguments are the
// class's own type parameters, annotated by their declarations
func (a *VariableAnnotator) visitClass(tree program.Tree, t atm.AnnotatedType) error {
	loc := declaredAt(tree.(program.ElementTree))
	t.ReplaceAnnotation(a.session.Slots.Annotation(a.session.Slots.CreateVariable(loc)))
	declared, ok := t.(*atm.Declared)
	if !ok {
		return nil
	}
	var params []*atm.TypeVariable
	for _, arg := range declared.TypeArgs {
		if tv, ok := arg.(*atm.TypeVariable); ok {
			params = append(params, tv)
		}
	}
	return a.copyTypeParameters(params)
}

func (a *VariableAnnotator) copyTypeParameters(params []*atm.TypeVariable) error {
	for _, tv := range params {
		if tv.Decl == nil {
			continue
		}
		declared, err := a.resolver.AnnotatedTypeOfElement(tv.Decl)
		if err != nil {
			return err
		}
		if err := atm.CopyAnnotations(declared, tv); err != nil {
			return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "cannot copy type parameter %s: %v", tv.Decl.Name(), err), declared, tv))
		}
	}
	return nil
}

// visitTypeParameter annotates a type parameter and both of its bounds
func (a *VariableAnnotator) visitTypeParameter(tree program.Tree, t atm.AnnotatedType) error {
	tv, ok := t.(*atm.TypeVariable)
	if !ok {
		return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "type parameter %v has type %v", tree, t), t))
	}
	loc := tree.Location().At(tree.(program.ElementTree).Element().Name())
	tv.ReplaceAnnotation(a.session.Slots.Annotation(a.session.Slots.CreateVariable(loc)))
	if err := a.annotateBound(loc.At("upper"), tv.UpperBound); err != nil {
		return err
	}
	return a.annotateBound(loc.At("lower"), tv.LowerBound)
}

func (a *VariableAnnotator) annotateBound(loc model.Location, bound atm.AnnotatedType) error {
	if bound == nil {
		return nil
	}
	return a.annotateFresh(loc, bound)
}

func (a *VariableAnnotator) visitLiteral(tree program.Tree, t atm.AnnotatedType) error {
	q := a.system.LiteralQualifier(tree.(program.LiteralTree).LiteralKind())
	return a.site(tree, "", t, func(model.Location) model.Slot {
		return a.session.Slots.ConstantFor(q)
	})
}

// visitNewSite gives an allocation or conversion site slots of its own
func (a *VariableAnnotator) visitNewSite(tree program.Tree, t atm.AnnotatedType) error {
	return a.AnnotateSite(tree, "", t)
}

// visitElementUse annotates a read of a variable or field with its declared type, seen
// through the receiver for fields. Uses of methods and classes carry no qualifier
func (a *VariableAnnotator) visitElementUse(tree program.Tree, t atm.AnnotatedType) error {
	element := tree.(program.ElementTree).Element()
	if element == nil {
		return a.fail(ierr.New(ierr.ErrUnhandledTree, "%v does not refer to an element", tree))
	}
	switch element.ElementKind() {
	case program.Method, program.Constructor, program.Class, program.TypeParameter:
		return nil
	}
	declared, err := a.resolver.AnnotatedTypeOfElement(element)
	if err != nil {
		return err
	}
	if sel, ok := tree.(program.MemberSelectTree); ok && sel.Receiver() != nil {
		owner, err := a.resolver.AnnotatedTypeOfTree(sel.Receiver())
		if err != nil {
			return err
		}
		declared = a.resolver.AsMemberOf(declared, owner)
	}
	return a.copyOnto(tree, declared, t)
}

func (a *VariableAnnotator) visitInvocation(tree program.Tree, t atm.AnnotatedType) error {
	exe, _, err := a.resolver.MethodFromUse(tree.(program.InvocationTree))
	if err != nil {
		return err
	}
	return a.copyOnto(tree, exe.Return, t)
}

func (a *VariableAnnotator) visitAssignment(tree program.Tree, t atm.AnnotatedType) error {
	variable, err := a.resolver.AnnotatedTypeOfTree(tree.(program.AssignmentTree).Variable())
	if err != nil {
		return err
	}
	return a.copyOnto(tree, variable, t)
}

func (a *VariableAnnotator) visitOperand(tree program.Tree, t atm.AnnotatedType) error {
	operand, err := a.resolver.AnnotatedTypeOfTree(tree.(program.OperandTree).Operand())
	if err != nil {
		return err
	}
	return a.copyOnto(tree, operand, t)
}

// visitJoin annotates the point where two values meet, the branches of a conditional
// or the operands of a binary operator, with their least upper bound
func (a *VariableAnnotator) visitJoin(tree program.Tree, t atm.AnnotatedType) error {
	var left, right program.Tree
	switch tree.TreeKind() {
	case program.Conditional:
		conditional := tree.(program.ConditionalTree)
		left, right = conditional.TrueExpression(), conditional.FalseExpression()
	case program.Binary:
		binary := tree.(program.BinaryTree)
		left, right = binary.LeftOperand(), binary.RightOperand()
	default:
		return a.fail(ierr.New(ierr.ErrUnhandledTree, "%v has no operands to join", tree))
	}
	leftType, err := a.resolver.AnnotatedTypeOfTree(left)
	if err != nil {
		return err
	}
	rightType, err := a.resolver.AnnotatedTypeOfTree(right)
	if err != nil {
		return err
	}
	leftSlot, err := a.primarySlot(leftType)
	if err != nil {
		return err
	}
	rightSlot, err := a.primarySlot(rightType)
	if err != nil {
		return err
	}
	if leftType.Kind() == t.Kind() {
		if err := a.copyOnto(tree, leftType, t); err != nil {
			return err
		}
	}
	lub, err := a.qualifiers.LeastUpperBoundAt(
		a.session.Slots.Annotation(leftSlot),
		a.session.Slots.Annotation(rightSlot),
		tree.Location(),
	)
	if err != nil {
		return err
	}
	t.ReplaceAnnotation(lub)
	return nil
}

// copyOnto copies the annotations of from onto t, the type of tree
func (a *VariableAnnotator) copyOnto(tree program.Tree, from, t atm.AnnotatedType) error {
	if err := atm.CopyAnnotations(from, t); err != nil {
		return a.fail(ierr.WithTypes(ierr.New(ierr.ErrUnhandledKind, "type of %v does not fit its source: %v", tree, err), from, t))
	}
	return nil
}
