package factory

import (
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/program"
)

// Host is the traversal engine the program under inference comes from.
//
// Types returned by Host are unannotated skeletons: the Factory annotates them. Every call
// must return a fresh skeleton, since annotating mutates it
type Host interface {
	// DeclarationFromElement returns the declaration tree of e, if its source is available
	DeclarationFromElement(e program.Element) (program.Tree, bool)
	ElementType(e program.Element) (atm.AnnotatedType, error)
	TreeType(t program.Tree) (atm.AnnotatedType, error)
	// ElementOfTree is the element a tree declares or refers to
	ElementOfTree(t program.Tree) (program.Element, bool)
	// FindTypeArguments infers the type arguments of a generic call, keyed by the type
	// parameters of the invoked executable. It is empty for non generic calls
	FindTypeArguments(call program.InvocationTree) (map[program.Element]atm.AnnotatedType, error)
	// TypeParameters are the declared type parameters of a class or executable, in order
	TypeParameters(e program.Element) []program.Element
	// EnclosingClass is the unit of flow analysis t belongs to
	EnclosingClass(t program.Tree) (program.Tree, bool)
	// RunFlow runs the flow-sensitive pass over classTree, asking flow for the types of
	// the trees it visits and reporting assignments to it
	RunFlow(classTree program.Tree, flow FlowContext) error
	SetRoot(root program.Tree)
}

// RealOracle annotates elements without source with the qualifiers of the real type system
type RealOracle interface {
	AnnotatedTypeOf(e program.Element) (atm.AnnotatedType, error)
	SetRoot(root program.Tree)
}

// FlowContext is what a Host sees of the Factory while running a flow pass
type FlowContext interface {
	AnnotatedTypeOfTree(t program.Tree) (atm.AnnotatedType, error)
	Refine(assignment program.AssignmentTree) error
}
