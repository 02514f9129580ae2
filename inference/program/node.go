package program

import (
	"fmt"
	"strings"

	"github.com/cottand/qinfer/inference/model"
)

// Node is a general purpose Tree which satisfies every tree interface of this package.
// Children are interpreted according to Kind:
//
//	Assignment                   variable, expression
//	Conditional                  [condition], true expression, false expression
//	Binary                       left, right
//	Unary, Parenthesized         operand
//	MethodInvocation, NewClass   arguments
//	MemberSelect                 [receiver]
type Node struct {
	Kind     TreeKind
	Loc      model.Location
	Elem     Element
	Literal  LiteralKind
	Children []Tree
	// Origin is the host's own representation, if any
	Origin any
}

var (
	_ ElementTree      = (*Node)(nil)
	_ MemberSelectTree = (*Node)(nil)
	_ LiteralTree      = (*Node)(nil)
	_ InvocationTree   = (*Node)(nil)
	_ AssignmentTree   = (*Node)(nil)
	_ ConditionalTree  = (*Node)(nil)
	_ BinaryTree       = (*Node)(nil)
	_ OperandTree      = (*Node)(nil)
)

func (n *Node) TreeKind() TreeKind       { return n.Kind }
func (n *Node) Location() model.Location { return n.Loc }
func (n *Node) Element() Element         { return n.Elem }
func (n *Node) Invoked() Element         { return n.Elem }
func (n *Node) LiteralKind() LiteralKind { return n.Literal }
func (n *Node) Arguments() []Tree        { return n.Children }
func (n *Node) Variable() Tree           { return n.child(0) }
func (n *Node) Expression() Tree         { return n.child(1) }
func (n *Node) LeftOperand() Tree        { return n.child(0) }
func (n *Node) RightOperand() Tree       { return n.child(1) }
func (n *Node) Operand() Tree            { return n.child(0) }
func (n *Node) Receiver() Tree           { return n.child(0) }

func (n *Node) TrueExpression() Tree {
	if len(n.Children) == 2 {
		return n.child(0)
	}
	return n.child(1)
}

func (n *Node) FalseExpression() Tree {
	if len(n.Children) == 2 {
		return n.child(1)
	}
	return n.child(2)
}

func (n *Node) child(i int) Tree {
	if i < len(n.Children) {
		return n.Children[i]
	}
	return nil
}

func (n *Node) String() string {
	sb := &strings.Builder{}
	sb.WriteString(n.Kind.String())
	if n.Elem != nil {
		_, _ = fmt.Fprintf(sb, " %s", n.Elem.Name())
	}
	if n.Kind == Literal {
		_, _ = fmt.Fprintf(sb, " %s", n.Literal)
	}
	if !n.Loc.IsMissing() {
		_, _ = fmt.Fprintf(sb, " at %s", n.Loc)
	}
	return sb.String()
}

// Path renders the chain of trees leading to the current traversal position
func Path(trees []Tree) []string {
	path := make([]string, 0, len(trees))
	for _, t := range trees {
		if s, ok := t.(fmt.Stringer); ok {
			path = append(path, s.String())
		} else {
			path = append(path, t.TreeKind().String())
		}
	}
	return path
}
