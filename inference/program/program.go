// Package program holds the host-side identities constraint generation works against.
//
// Elements are declarations (variables, methods, classes, type parameters) and Trees are
// syntax nodes. Both are opaque to the core: they are compared by identity and used as
// memoization keys, so implementations must be comparable, typically pointers.
package program

import (
	"fmt"
	"strconv"

	"github.com/cottand/qinfer/inference/model"
)

type ElementKind int

const (
	LocalVariable ElementKind = iota
	Parameter
	Field
	Result
	Method
	Constructor
	Class
	TypeParameter
)

var elementKindNames = [...]string{
	LocalVariable: "LOCAL_VARIABLE",
	Parameter:     "PARAMETER",
	Field:         "FIELD",
	Result:        "RESULT",
	Method:        "METHOD",
	Constructor:   "CONSTRUCTOR",
	Class:         "CLASS",
	TypeParameter: "TYPE_PARAMETER",
}

func (k ElementKind) String() string {
	if int(k) < len(elementKindNames) {
		return elementKindNames[k]
	}
	return "ElementKind(" + strconv.Itoa(int(k)) + ")"
}

// IsLocal is true for elements which cannot be referenced from outside their compilation unit
func (k ElementKind) IsLocal() bool {
	return k == LocalVariable || k == Parameter || k == Result
}

type Element interface {
	ElementKind() ElementKind
	Name() string
}

// Symbol is a plain Element, for hosts which do not have their own element type
type Symbol struct {
	Kind  ElementKind
	Label string
	// Origin is the host's own representation, if any
	Origin any
}

func NewSymbol(kind ElementKind, name string) *Symbol {
	return &Symbol{Kind: kind, Label: name}
}

func (s *Symbol) ElementKind() ElementKind { return s.Kind }
func (s *Symbol) Name() string             { return s.Label }
func (s *Symbol) String() string           { return fmt.Sprintf("%s %s", s.Kind, s.Label) }

type TreeKind int

const (
	CompilationUnit TreeKind = iota
	ClassDecl
	MethodDecl
	VariableDecl
	TypeParameterDecl
	Literal
	Identifier
	MemberSelect
	MethodInvocation
	NewClass
	NewArray
	Assignment
	Conditional
	Binary
	Unary
	Parenthesized
	TypeCast
)

var treeKindNames = [...]string{
	CompilationUnit:   "COMPILATION_UNIT",
	ClassDecl:         "CLASS",
	MethodDecl:        "METHOD",
	VariableDecl:      "VARIABLE",
	TypeParameterDecl: "TYPE_PARAMETER",
	Literal:           "LITERAL",
	Identifier:        "IDENTIFIER",
	MemberSelect:      "MEMBER_SELECT",
	MethodInvocation:  "METHOD_INVOCATION",
	NewClass:          "NEW_CLASS",
	NewArray:          "NEW_ARRAY",
	Assignment:        "ASSIGNMENT",
	Conditional:       "CONDITIONAL_EXPRESSION",
	Binary:            "BINARY",
	Unary:             "UNARY",
	Parenthesized:     "PARENTHESIZED",
	TypeCast:          "TYPE_CAST",
}

func (k TreeKind) String() string {
	if int(k) < len(treeKindNames) {
		return treeKindNames[k]
	}
	return "TreeKind(" + strconv.Itoa(int(k)) + ")"
}

// IsDeclaration is true for trees which declare an Element
func (k TreeKind) IsDeclaration() bool {
	return k == ClassDecl || k == MethodDecl || k == VariableDecl || k == TypeParameterDecl
}

type LiteralKind int

const (
	NullLiteral LiteralKind = iota
	BoolLiteral
	IntLiteral
	FloatLiteral
	CharLiteral
	StringLiteral
)

func (k LiteralKind) String() string {
	switch k {
	case NullLiteral:
		return "null"
	case BoolLiteral:
		return "bool"
	case IntLiteral:
		return "int"
	case FloatLiteral:
		return "float"
	case CharLiteral:
		return "char"
	case StringLiteral:
		return "string"
	}
	return "LiteralKind(" + strconv.Itoa(int(k)) + ")"
}

type Tree interface {
	TreeKind() TreeKind
	Location() model.Location
}

// ElementTree is a declaration, or a use of an element (identifiers, member selects)
type ElementTree interface {
	Tree
	Element() Element
}

// MemberSelectTree is a use of a field through its receiver, nil when the host does not
// expose one
type MemberSelectTree interface {
	ElementTree
	Receiver() Tree
}

type LiteralTree interface {
	Tree
	LiteralKind() LiteralKind
}

// InvocationTree is a method invocation, or a constructor invocation for NewClass
type InvocationTree interface {
	Tree
	Invoked() Element
	Arguments() []Tree
}

type AssignmentTree interface {
	Tree
	Variable() Tree
	Expression() Tree
}

type ConditionalTree interface {
	Tree
	TrueExpression() Tree
	FalseExpression() Tree
}

type BinaryTree interface {
	Tree
	LeftOperand() Tree
	RightOperand() Tree
}

// OperandTree is a unary expression or a parenthesized one
type OperandTree interface {
	Tree
	Operand() Tree
}
