package gohost

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/cottand/qinfer/inference/program"
)

var literalKinds = map[token.Token]program.LiteralKind{
	token.INT:    program.IntLiteral,
	token.FLOAT:  program.FloatLiteral,
	token.IMAG:   program.FloatLiteral,
	token.CHAR:   program.CharLiteral,
	token.STRING: program.StringLiteral,
}

// Tree returns the tree of a value expression, or false for expressions which do not
// denote values, such as types. Trees are memoized per expression
func (h *Host) Tree(expr ast.Expr) (*program.Node, bool) {
	if node, ok := h.nodes[expr]; ok {
		return node, true
	}
	tv, ok := h.info.Types[expr]
	if ok && tv.IsType() {
		return nil, false
	}
	if !ok {
		if _, isIdent := expr.(*ast.Ident); !isIdent {
			return nil, false
		}
	}
	node := &program.Node{Loc: h.location(expr.Pos()), Origin: expr}
	if !h.classify(node, expr) {
		return nil, false
	}
	h.nodes[expr] = node
	return node, true
}

// classify fills in the kind, element and children of node for expr
func (h *Host) classify(node *program.Node, expr ast.Expr) bool {
	switch expr := expr.(type) {
	case *ast.BasicLit:
		node.Kind, node.Literal = program.Literal, literalKinds[expr.Kind]
	case *ast.Ident:
		return h.classifyIdent(node, expr, h.info.Uses[expr])
	case *ast.SelectorExpr:
		if sel, ok := h.info.Selections[expr]; ok {
			if sel.Kind() == types.FieldVal {
				// fields of instantiated types are read through their declaration, and seen
				// through the receiver's type arguments
				field := sel.Obj().(*types.Var).Origin()
				node.Kind, node.Elem = program.MemberSelect, h.Symbol(field)
				if len(sel.Index()) == 1 {
					if recv, ok := h.Tree(expr.X); ok {
						node.Children = []program.Tree{recv}
					}
				}
				return true
			}
			// method values are closures
			node.Kind = program.NewClass
			return true
		}
		// qualified identifier, pkg.Name
		return h.classifyIdent(node, expr.Sel, h.info.Uses[expr.Sel])
	case *ast.CallExpr:
		return h.classifyCall(node, expr)
	case *ast.BinaryExpr:
		return h.withChildren(node, program.Binary, expr.X, expr.Y)
	case *ast.UnaryExpr:
		if expr.Op == token.AND || expr.Op == token.ARROW {
			node.Kind = program.NewClass
			return true
		}
		return h.withChildren(node, program.Unary, expr.X)
	case *ast.ParenExpr:
		return h.withChildren(node, program.Parenthesized, expr.X)
	case *ast.SliceExpr:
		if types.Identical(h.info.TypeOf(expr), h.info.TypeOf(expr.X)) {
			return h.withChildren(node, program.Unary, expr.X)
		}
		node.Kind = program.NewClass
	case *ast.TypeAssertExpr:
		return h.withChildren(node, program.TypeCast, expr.X)
	case *ast.CompositeLit, *ast.FuncLit, *ast.StarExpr, *ast.IndexExpr, *ast.IndexListExpr:
		// allocations, and reads of locations which have no declaration of their own
		node.Kind = program.NewClass
	default:
		return false
	}
	return true
}

func (h *Host) classifyIdent(node *program.Node, ident *ast.Ident, obj types.Object) bool {
	switch obj := obj.(type) {
	case nil:
		return false
	case *types.Nil:
		node.Kind, node.Literal = program.Literal, program.NullLiteral
	case *types.Const:
		if obj.Pkg() == nil {
			// true, false and iota
			node.Kind, node.Literal = program.Literal, literalOfConst(obj)
			return true
		}
		node.Kind, node.Elem = program.Identifier, h.Symbol(obj)
	case *types.Var:
		node.Kind, node.Elem = program.Identifier, h.Symbol(obj)
	case *types.Func:
		// a function used as a value
		node.Kind = program.NewClass
	default:
		return false
	}
	return true
}

func literalOfConst(c *types.Const) program.LiteralKind {
	if basic, ok := c.Type().(*types.Basic); ok && basic.Info()&types.IsBoolean != 0 {
		return program.BoolLiteral
	}
	return program.IntLiteral
}

func (h *Host) classifyCall(node *program.Node, call *ast.CallExpr) bool {
	if tv, ok := h.info.Types[call.Fun]; ok && tv.IsType() {
		if len(call.Args) == 1 {
			return h.withChildren(node, program.TypeCast, call.Args[0])
		}
		node.Kind = program.TypeCast
		return true
	}
	ident := calleeIdent(call.Fun)
	fn, ok := h.info.Uses[ident].(*types.Func)
	if ident == nil || !ok {
		// builtins and calls of function values have no declaration to look up
		node.Kind = program.NewClass
		return true
	}
	node.Kind, node.Elem = program.MethodInvocation, h.Symbol(fn.Origin())
	for _, arg := range call.Args {
		child, ok := h.Tree(arg)
		if !ok {
			continue
		}
		node.Children = append(node.Children, child)
	}
	return true
}

func (h *Host) withChildren(node *program.Node, kind program.TreeKind, exprs ...ast.Expr) bool {
	node.Kind = kind
	for _, expr := range exprs {
		child, ok := h.Tree(expr)
		if !ok {
			return false
		}
		node.Children = append(node.Children, child)
	}
	return true
}

// Assignment returns the tree of the index-th assignment of stmt, lhs = rhs
func (h *Host) Assignment(stmt ast.Stmt, index int, lhs, rhs ast.Expr) (*program.Node, bool) {
	key := assignmentKey{stmt: stmt, index: index}
	if node, ok := h.assignments[key]; ok {
		return node, true
	}
	variable, ok := h.Tree(lhs)
	if !ok {
		return nil, false
	}
	value, ok := h.Tree(rhs)
	if !ok {
		return nil, false
	}
	node := &program.Node{
		Kind:     program.Assignment,
		Loc:      h.location(lhs.Pos()),
		Children: []program.Tree{variable, value},
		Origin:   key,
	}
	h.assignments[key] = node
	return node, true
}
