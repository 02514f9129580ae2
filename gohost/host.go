package gohost

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"maps"

	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
	gopackages "golang.org/x/tools/go/packages"
)

var _ factory.Host = (*Host)(nil)

// Host indexes the syntax and type information of a set of loaded packages
type Host struct {
	fset  *token.FileSet
	pkgs  []*gopackages.Package
	info  *types.Info
	files []*ast.File

	symbols      map[types.Object]*program.Symbol
	kinds        map[types.Object]program.ElementKind
	declarations map[types.Object]*program.Node
	nodes        map[ast.Node]*program.Node
	assignments  map[assignmentKey]*program.Node
	funcs        map[*ast.FuncDecl]*program.Node
	bodies       map[program.Tree]*ast.FuncDecl

	root program.Tree
}

type assignmentKey struct {
	stmt  ast.Stmt
	index int
}

// NewHost indexes pkgs, which must have been loaded with syntax and type information
func NewHost(pkgs []*gopackages.Package) *Host {
	h := &Host{
		pkgs: pkgs,
		info: &types.Info{
			Types:      make(map[ast.Expr]types.TypeAndValue),
			Defs:       make(map[*ast.Ident]types.Object),
			Uses:       make(map[*ast.Ident]types.Object),
			Implicits:  make(map[ast.Node]types.Object),
			Selections: make(map[*ast.SelectorExpr]*types.Selection),
			Instances:  make(map[*ast.Ident]types.Instance),
		},
		symbols:      make(map[types.Object]*program.Symbol),
		kinds:        make(map[types.Object]program.ElementKind),
		declarations: make(map[types.Object]*program.Node),
		nodes:        make(map[ast.Node]*program.Node),
		assignments:  make(map[assignmentKey]*program.Node),
		funcs:        make(map[*ast.FuncDecl]*program.Node),
		bodies:       make(map[program.Tree]*ast.FuncDecl),
	}
	gopackages.Visit(pkgs, nil, func(pkg *gopackages.Package) {
		if h.fset == nil {
			h.fset = pkg.Fset
		}
		if pkg.TypesInfo == nil {
			return
		}
		maps.Copy(h.info.Types, pkg.TypesInfo.Types)
		maps.Copy(h.info.Defs, pkg.TypesInfo.Defs)
		maps.Copy(h.info.Uses, pkg.TypesInfo.Uses)
		maps.Copy(h.info.Implicits, pkg.TypesInfo.Implicits)
		maps.Copy(h.info.Selections, pkg.TypesInfo.Selections)
		maps.Copy(h.info.Instances, pkg.TypesInfo.Instances)
		h.files = append(h.files, pkg.Syntax...)
	})
	for _, file := range h.files {
		h.indexSignatures(file)
	}
	h.indexDeclarations()
	for _, file := range h.files {
		for _, decl := range file.Decls {
			if fd, ok := decl.(*ast.FuncDecl); ok {
				if fn, ok := h.info.Defs[fd.Name].(*types.Func); ok {
					h.funcs[fd] = h.declarations[fn]
					h.bodies[h.declarations[fn]] = fd
				}
			}
		}
	}
	return h
}

// indexSignatures records which variables of file are parameters and results
func (h *Host) indexSignatures(file *ast.File) {
	ast.Inspect(file, func(n ast.Node) bool {
		var sig *types.Signature
		switch n := n.(type) {
		case *ast.FuncDecl:
			if fn, ok := h.info.Defs[n.Name].(*types.Func); ok {
				sig = fn.Type().(*types.Signature)
			}
		case *ast.FuncLit:
			sig, _ = h.info.TypeOf(n).(*types.Signature)
		}
		if sig == nil {
			return true
		}
		if recv := sig.Recv(); recv != nil {
			h.kinds[recv] = program.Parameter
		}
		for v := range sig.Params().Variables() {
			h.kinds[v] = program.Parameter
		}
		for v := range sig.Results().Variables() {
			h.kinds[v] = program.Result
		}
		return true
	})
}

// indexDeclarations makes a declaration tree for every object defined in source
func (h *Host) indexDeclarations() {
	for ident, obj := range h.info.Defs {
		if obj == nil || ident.Name == "_" {
			continue
		}
		var kind program.TreeKind
		switch obj := obj.(type) {
		case *types.TypeName:
			if _, ok := obj.Type().(*types.TypeParam); ok {
				kind = program.TypeParameterDecl
			} else {
				kind = program.ClassDecl
			}
		case *types.Func:
			kind = program.MethodDecl
		case *types.Var, *types.Const:
			kind = program.VariableDecl
		default:
			continue
		}
		h.declarations[obj] = &program.Node{
			Kind:   kind,
			Loc:    h.location(ident.Pos()),
			Elem:   h.Symbol(obj),
			Origin: ident,
		}
	}
}

// Symbol returns the element of obj. It is memoized, so elements compare by identity
func (h *Host) Symbol(obj types.Object) *program.Symbol {
	if s, ok := h.symbols[obj]; ok {
		return s
	}
	s := program.NewSymbol(h.kindOf(obj), obj.Name())
	s.Origin = obj
	h.symbols[obj] = s
	return s
}

func (h *Host) kindOf(obj types.Object) program.ElementKind {
	if kind, ok := h.kinds[obj]; ok {
		return kind
	}
	switch obj := obj.(type) {
	case *types.Func:
		return program.Method
	case *types.TypeName:
		if _, ok := obj.Type().(*types.TypeParam); ok {
			return program.TypeParameter
		}
		return program.Class
	case *types.Var:
		if obj.IsField() || obj.Pkg() == nil || obj.Parent() == nil || obj.Parent() == obj.Pkg().Scope() {
			return program.Field
		}
		return program.LocalVariable
	}
	if obj.Parent() != nil && obj.Pkg() != nil && obj.Parent() != obj.Pkg().Scope() {
		return program.LocalVariable
	}
	return program.Field
}

func objectOf(e program.Element) (types.Object, bool) {
	s, ok := e.(*program.Symbol)
	if !ok {
		return nil, false
	}
	obj, ok := s.Origin.(types.Object)
	return obj, ok
}

func (h *Host) location(pos token.Pos) model.Location {
	if !pos.IsValid() || h.fset == nil {
		return model.MissingLocation
	}
	p := h.fset.Position(pos)
	return model.Location{File: p.Filename, Line: p.Line, Column: p.Column}
}

// Files are the syntax trees of every loaded package
func (h *Host) Files() []*ast.File { return h.files }

func (h *Host) Info() *types.Info { return h.info }

// FuncTree is the declaration of fn, which also is the unit of flow analysis
func (h *Host) FuncTree(fn *ast.FuncDecl) (*program.Node, bool) {
	node, ok := h.funcs[fn]
	return node, ok
}

func (h *Host) DeclarationFromElement(e program.Element) (program.Tree, bool) {
	obj, ok := objectOf(e)
	if !ok {
		return nil, false
	}
	decl, ok := h.declarations[obj]
	return decl, ok
}

func (h *Host) ElementType(e program.Element) (atm.AnnotatedType, error) {
	obj, ok := objectOf(e)
	if !ok {
		return nil, fmt.Errorf("element %s does not come from go/types", e.Name())
	}
	switch obj := obj.(type) {
	case *types.Func:
		return h.executable(e, obj.Type().(*types.Signature)), nil
	case *types.TypeName:
		if tp, ok := obj.Type().(*types.TypeParam); ok {
			return atm.NewTypeVariable(e, h.bound(tp), nil), nil
		}
		return h.classType(obj), nil
	}
	return h.convert(obj.Type()), nil
}

func (h *Host) TreeType(t program.Tree) (atm.AnnotatedType, error) {
	node, ok := t.(*program.Node)
	if !ok {
		return nil, fmt.Errorf("tree %v was not made by this host", t)
	}
	if node.Kind.IsDeclaration() {
		return h.ElementType(node.Elem)
	}
	switch origin := node.Origin.(type) {
	case ast.Expr:
		typ := h.info.TypeOf(origin)
		if typ == nil {
			return nil, fmt.Errorf("no type information for %v", node)
		}
		return h.convert(typ), nil
	case assignmentKey:
		return h.TreeType(node.Children[0])
	}
	return nil, fmt.Errorf("tree %v has no type", node)
}

func (h *Host) ElementOfTree(t program.Tree) (program.Element, bool) {
	node, ok := t.(*program.Node)
	if !ok || node.Elem == nil {
		return nil, false
	}
	return node.Elem, true
}

func (h *Host) FindTypeArguments(call program.InvocationTree) (map[program.Element]atm.AnnotatedType, error) {
	node, ok := call.(*program.Node)
	if !ok {
		return nil, fmt.Errorf("tree %v was not made by this host", call)
	}
	expr, ok := node.Origin.(*ast.CallExpr)
	if !ok {
		return nil, nil
	}
	ident := calleeIdent(expr.Fun)
	if ident == nil {
		return nil, nil
	}
	fn, ok := h.info.Uses[ident].(*types.Func)
	if !ok {
		return nil, nil
	}
	params := typeParamsOf(fn.Origin().Type().(*types.Signature))
	if params.Len() == 0 {
		return nil, nil
	}
	args := h.typeArgumentsOf(expr, ident)
	if args.Len() == 0 {
		return nil, nil
	}
	mapping := make(map[program.Element]atm.AnnotatedType, args.Len())
	for i := range min(args.Len(), params.Len()) {
		mapping[h.Symbol(params.At(i).Obj())] = h.convert(args.At(i))
	}
	return mapping, nil
}

// typeArgumentsOf are the type arguments of the generic function, or of the receiver of
// the generic method, called by call
func (h *Host) typeArgumentsOf(call *ast.CallExpr, ident *ast.Ident) *types.TypeList {
	if inst, ok := h.info.Instances[ident]; ok {
		return inst.TypeArgs
	}
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	if !ok {
		return nil
	}
	selection, ok := h.info.Selections[sel]
	if !ok {
		return nil
	}
	recv := selection.Recv()
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = ptr.Elem()
	}
	if named, ok := types.Unalias(recv).(*types.Named); ok {
		return named.TypeArgs()
	}
	return nil
}

func typeParamsOf(sig *types.Signature) *types.TypeParamList {
	if sig.RecvTypeParams().Len() > 0 {
		return sig.RecvTypeParams()
	}
	return sig.TypeParams()
}

// calleeIdent is the identifier naming the function called by fun, if any
func calleeIdent(fun ast.Expr) *ast.Ident {
	switch fun := ast.Unparen(fun).(type) {
	case *ast.Ident:
		return fun
	case *ast.SelectorExpr:
		return fun.Sel
	case *ast.IndexExpr:
		return calleeIdent(fun.X)
	case *ast.IndexListExpr:
		return calleeIdent(fun.X)
	}
	return nil
}

func (h *Host) TypeParameters(e program.Element) []program.Element {
	obj, ok := objectOf(e)
	if !ok {
		return nil
	}
	var list *types.TypeParamList
	switch obj := obj.(type) {
	case *types.Func:
		list = typeParamsOf(obj.Type().(*types.Signature))
	case *types.TypeName:
		if named, ok := obj.Type().(*types.Named); ok {
			list = named.TypeParams()
		}
	}
	params := make([]program.Element, 0, list.Len())
	for i := range list.Len() {
		params = append(params, h.Symbol(list.At(i).Obj()))
	}
	return params
}

func (h *Host) EnclosingClass(t program.Tree) (program.Tree, bool) {
	pos := t.Location()
	if pos.IsMissing() {
		return nil, false
	}
	for fd, node := range h.funcs {
		if fd.Body == nil {
			continue
		}
		start, end := h.fset.Position(fd.Pos()), h.fset.Position(fd.End())
		if start.Filename == pos.File && contains(start, end, pos) {
			return node, true
		}
	}
	return nil, false
}

func contains(start, end token.Position, loc model.Location) bool {
	after := loc.Line > start.Line || (loc.Line == start.Line && loc.Column >= start.Column)
	before := loc.Line < end.Line || (loc.Line == end.Line && loc.Column < end.Column)
	return after && before
}

func (h *Host) SetRoot(root program.Tree) {
	h.root = root
	logger.Debug("root changed", "root", root)
}
