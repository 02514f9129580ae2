package gohost

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/atm"
	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/program"
)

// Checker walks every function body of the loaded packages and generates the
// constraints of the value flows it finds: assignments, variable initialisers, returns,
// call arguments, composite literal elements, range variables and channel sends
type Checker struct {
	host    *Host
	factory *factory.Factory

	// results is the stack of result types of the functions being checked
	results []atm.AnnotatedType
	errs    []error
}

func NewChecker(h *Host, f *factory.Factory) *Checker {
	return &Checker{host: h, factory: f}
}

// Check generates the constraints of every file. Generation carries on past internal
// errors, which are all returned at the end
func (c *Checker) Check(ctx context.Context) error {
	for _, file := range c.host.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.checkFile(file)
	}
	switch len(c.errs) {
	case 0:
		return nil
	case 1:
		return c.errs[0]
	}
	return errors.Wrapf(errors.Join(c.errs...), "%d errors during constraint generation", len(c.errs))
}

// Errors are the errors found by Check so far
func (c *Checker) Errors() []error { return c.errs }

func (c *Checker) checkFile(file *ast.File) {
	root := &program.Node{
		Kind:   program.CompilationUnit,
		Loc:    c.host.location(file.Pos()),
		Origin: file,
	}
	c.factory.SetRoot(root)
	logger.Debug("checking file", "file", root.Loc.File, "package", file.Name.Name)
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			c.checkFunc(decl)
		case *ast.GenDecl:
			if decl.Tok == token.VAR || decl.Tok == token.CONST {
				ast.Inspect(decl, c.visit)
			}
		}
	}
}

func (c *Checker) checkFunc(fd *ast.FuncDecl) {
	fn, ok := c.host.info.Defs[fd.Name].(*types.Func)
	if !ok {
		return
	}
	t, err := c.factory.AnnotatedTypeOfElement(c.host.Symbol(fn))
	if err != nil {
		c.fail(err)
		return
	}
	exe, ok := t.(*atm.Executable)
	if !ok || fd.Body == nil {
		return
	}
	if node, ok := c.host.FuncTree(fd); ok {
		if err := c.factory.PerformFlowAnalysis(node); err != nil {
			c.fail(err)
		}
	}
	c.results = append(c.results, exe.Return)
	defer c.popResults()
	ast.Inspect(fd.Body, c.visit)
}

func (c *Checker) checkFuncLit(lit *ast.FuncLit) {
	sig, ok := c.host.info.TypeOf(lit).(*types.Signature)
	if !ok {
		return
	}
	result := c.host.tuple(sig.Results())
	if tree, ok := c.host.Tree(lit); ok && result.Kind() != atm.KindNoType {
		if err := c.factory.Annotator().AnnotateSite(tree, "return", result); err != nil {
			c.fail(err)
			return
		}
	}
	c.results = append(c.results, result)
	defer c.popResults()
	ast.Inspect(lit.Body, c.visit)
}

func (c *Checker) popResults() { c.results = c.results[:len(c.results)-1] }

func (c *Checker) visit(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.FuncLit:
		c.checkFuncLit(n)
		return false
	case *ast.AssignStmt:
		c.checkAssign(n)
	case *ast.ValueSpec:
		c.checkValueSpec(n)
	case *ast.ReturnStmt:
		c.checkReturn(n)
	case *ast.RangeStmt:
		c.checkRange(n)
	case *ast.SendStmt:
		c.checkSend(n)
	case *ast.CallExpr:
		c.checkCall(n)
		return false
	case *ast.CompositeLit:
		c.checkCompositeLit(n)
		return false
	case *ast.SelectorExpr:
		c.checkSelector(n)
		return false
	case *ast.KeyValueExpr:
		ast.Inspect(n.Value, c.visit)
		return false
	case ast.Expr:
		c.typeOf(n)
	}
	return true
}

func (c *Checker) checkAssign(stmt *ast.AssignStmt) {
	if stmt.Tok != token.ASSIGN && stmt.Tok != token.DEFINE {
		return
	}
	if len(stmt.Lhs) == len(stmt.Rhs) {
		for i, lhs := range stmt.Lhs {
			c.flowInto(stmt.Rhs[i], lhs)
		}
		return
	}
	if len(stmt.Rhs) == 1 {
		c.flowTuple(stmt.Rhs[0], stmt.Lhs)
	}
}

func (c *Checker) checkValueSpec(spec *ast.ValueSpec) {
	targets := make([]ast.Expr, 0, len(spec.Names))
	for _, name := range spec.Names {
		targets = append(targets, name)
	}
	if len(spec.Values) == len(targets) {
		for i, value := range spec.Values {
			c.flowInto(value, targets[i])
		}
		return
	}
	if len(spec.Values) == 1 {
		c.flowTuple(spec.Values[0], targets)
	}
}

func (c *Checker) checkReturn(ret *ast.ReturnStmt) {
	if len(c.results) == 0 || len(ret.Results) == 0 {
		return
	}
	result := c.results[len(c.results)-1]
	if len(ret.Results) == 1 {
		value, ok := c.typeOf(ret.Results[0])
		if !ok {
			return
		}
		if tuple, ok := asTuple(value); ok {
			if expected, ok := asTuple(result); ok {
				for i := range min(len(tuple.TypeArgs), len(expected.TypeArgs)) {
					c.flows(tuple.TypeArgs[i], expected.TypeArgs[i])
				}
				return
			}
		}
		c.flows(value, result)
		return
	}
	expected, ok := asTuple(result)
	if !ok {
		return
	}
	for i, expr := range ret.Results {
		if i >= len(expected.TypeArgs) {
			break
		}
		if value, ok := c.typeOf(expr); ok {
			c.flows(value, expected.TypeArgs[i])
		}
	}
}

func (c *Checker) checkRange(stmt *ast.RangeStmt) {
	if stmt.Tok != token.ASSIGN && stmt.Tok != token.DEFINE {
		return
	}
	over, ok := c.typeOf(stmt.X)
	if !ok {
		return
	}
	var key, value atm.AnnotatedType
	switch over := over.(type) {
	case *atm.Array:
		value = over.Component
	case *atm.Declared:
		switch {
		case over.Name == mapName && len(over.TypeArgs) == 2:
			key, value = over.TypeArgs[0], over.TypeArgs[1]
		case over.Name == chanName && len(over.TypeArgs) == 1:
			key = over.TypeArgs[0]
		}
	}
	if key != nil && stmt.Key != nil {
		if target, ok := c.target(stmt.Key); ok {
			c.flows(key, target)
		}
	}
	if value != nil && stmt.Value != nil {
		if target, ok := c.target(stmt.Value); ok {
			c.flows(value, target)
		}
	}
}

func (c *Checker) checkSend(stmt *ast.SendStmt) {
	ch, ok := c.typeOf(stmt.Chan)
	if !ok {
		return
	}
	declared, ok := ch.(*atm.Declared)
	if !ok || declared.Name != chanName || len(declared.TypeArgs) != 1 {
		return
	}
	if value, ok := c.typeOf(stmt.Value); ok {
		c.flows(value, declared.TypeArgs[0])
	}
}

func (c *Checker) checkCall(call *ast.CallExpr) {
	for _, arg := range call.Args {
		ast.Inspect(arg, c.visit)
	}
	if sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr); ok {
		ast.Inspect(sel.X, c.visit)
	} else if _, ok := ast.Unparen(call.Fun).(*ast.FuncLit); ok {
		ast.Inspect(call.Fun, c.visit)
	}
	tree, ok := c.host.Tree(call)
	if !ok {
		return
	}
	if _, ok := c.typeOf(call); !ok || tree.Kind != program.MethodInvocation {
		return
	}
	exe, _, err := c.factory.MethodFromUse(tree)
	if err != nil {
		c.fail(err)
		return
	}
	c.postReceiver(call, exe)

	sig, _ := c.host.info.TypeOf(call.Fun).(*types.Signature)
	variadic := sig != nil && sig.Variadic() && !call.Ellipsis.IsValid()
	if len(call.Args) == 1 && len(exe.Params) > 1 {
		// f(g()) spreads the results of g over the parameters of f
		value, ok := c.typeOf(call.Args[0])
		if !ok {
			return
		}
		if tuple, ok := asTuple(value); ok {
			for i, arg := range tuple.TypeArgs {
				c.flows(arg, paramAt(exe, i, variadic))
			}
			return
		}
	}
	for i, arg := range call.Args {
		if value, ok := c.typeOf(arg); ok {
			c.flows(value, paramAt(exe, i, variadic))
		}
	}
}

func (c *Checker) postReceiver(call *ast.CallExpr, exe *atm.Executable) {
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	if !ok || exe.Receiver == nil {
		return
	}
	if _, ok := c.host.info.Selections[sel]; !ok {
		return
	}
	owner, ok := c.typeOf(sel.X)
	if !ok {
		return
	}
	if err := c.factory.PostAsMemberOf(exe, owner, exe.Element); err != nil {
		c.fail(err)
	}
}

// paramAt is the parameter receiving the i-th argument. The arguments of a variadic
// parameter flow into its element type
func paramAt(exe *atm.Executable, i int, variadic bool) atm.AnnotatedType {
	if len(exe.Params) == 0 {
		return nil
	}
	last := len(exe.Params) - 1
	if !variadic || i < last {
		if i > last {
			return nil
		}
		return exe.Params[i]
	}
	if slice, ok := exe.Params[last].(*atm.Array); ok {
		return slice.Component
	}
	return exe.Params[last]
}

func (c *Checker) checkCompositeLit(lit *ast.CompositeLit) {
	for _, elt := range lit.Elts {
		ast.Inspect(elt, c.visit)
	}
	site, ok := c.typeOf(lit)
	if !ok {
		return
	}
	switch site := site.(type) {
	case *atm.Array:
		for _, elt := range lit.Elts {
			c.flowElement(elt, site.Component)
		}
		return
	case *atm.Declared:
		if site.Name == mapName && len(site.TypeArgs) == 2 {
			for _, elt := range lit.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				if key, ok := c.typeOf(kv.Key); ok {
					c.flows(key, site.TypeArgs[0])
				}
				c.flowElement(kv.Value, site.TypeArgs[1])
			}
			return
		}
	}
	st, ok := structOf(c.host.info.TypeOf(lit))
	if !ok {
		return
	}
	for i, elt := range lit.Elts {
		field, value := c.fieldOf(st, i, elt)
		if field == nil {
			continue
		}
		declared, err := c.factory.AnnotatedTypeOfElement(c.host.Symbol(field.Origin()))
		if err != nil {
			c.fail(err)
			continue
		}
		c.flowElement(value, c.factory.AsMemberOf(declared, site))
	}
}

// structOf is the struct type of a literal, whose type is a pointer when elided in an
// enclosing literal
func structOf(t types.Type) (*types.Struct, bool) {
	if t == nil {
		return nil, false
	}
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	return st, ok
}

// fieldOf is the field initialised by the i-th element of a struct literal, and its value
func (c *Checker) fieldOf(st *types.Struct, i int, elt ast.Expr) (*types.Var, ast.Expr) {
	if kv, ok := elt.(*ast.KeyValueExpr); ok {
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return nil, nil
		}
		field, _ := c.host.info.Uses[key].(*types.Var)
		return field, kv.Value
	}
	if i >= st.NumFields() {
		return nil, nil
	}
	return st.Field(i), elt
}

func (c *Checker) flowElement(elt ast.Expr, into atm.AnnotatedType) {
	if kv, ok := elt.(*ast.KeyValueExpr); ok {
		elt = kv.Value
	}
	if value, ok := c.typeOf(elt); ok {
		c.flows(value, into)
	}
}

func (c *Checker) checkSelector(sel *ast.SelectorExpr) {
	ast.Inspect(sel.X, c.visit)
	selection, ok := c.host.info.Selections[sel]
	if !ok {
		// qualified identifier
		c.typeOf(sel)
		return
	}
	member, ok := c.typeOf(sel)
	if !ok || selection.Kind() != types.FieldVal {
		return
	}
	owner, ok := c.typeOf(sel.X)
	if !ok {
		return
	}
	if err := c.factory.PostAsMemberOf(member, owner, c.host.Symbol(selection.Obj())); err != nil {
		c.fail(err)
	}
}

// flowInto constrains the value of expr to fit the target lhs
func (c *Checker) flowInto(expr, lhs ast.Expr) {
	value, ok := c.typeOf(expr)
	if !ok {
		return
	}
	if target, ok := c.target(lhs); ok {
		c.flows(value, target)
	}
}

// flowTuple constrains the values of a multi-valued expr to fit targets
func (c *Checker) flowTuple(expr ast.Expr, targets []ast.Expr) {
	value, ok := c.typeOf(expr)
	if !ok {
		return
	}
	tuple, ok := asTuple(value)
	if !ok {
		return
	}
	for i, lhs := range targets {
		if i >= len(tuple.TypeArgs) {
			break
		}
		if target, ok := c.target(lhs); ok {
			c.flows(tuple.TypeArgs[i], target)
		}
	}
}

// target is the type values assigned to lhs must fit: the declared type of a variable,
// or the type of the location otherwise
func (c *Checker) target(lhs ast.Expr) (atm.AnnotatedType, bool) {
	if ident, ok := ast.Unparen(lhs).(*ast.Ident); ok {
		if ident.Name == "_" {
			return nil, false
		}
		obj := c.host.info.Defs[ident]
		if obj == nil {
			obj = c.host.info.Uses[ident]
		}
		v, ok := obj.(*types.Var)
		if !ok {
			return nil, false
		}
		t, err := c.factory.AnnotatedTypeOfElement(c.host.Symbol(v))
		if err != nil {
			c.fail(err)
			return nil, false
		}
		return t, true
	}
	return c.typeOf(lhs)
}

// typeOf is the annotated type of a value expression
func (c *Checker) typeOf(expr ast.Expr) (atm.AnnotatedType, bool) {
	tree, ok := c.host.Tree(expr)
	if !ok {
		return nil, false
	}
	t, err := c.factory.AnnotatedTypeOfTree(tree)
	if err != nil {
		c.fail(err)
		return nil, false
	}
	return t, true
}

// flows constrains value to be a subtype of target
func (c *Checker) flows(value, target atm.AnnotatedType) {
	if value == nil || target == nil {
		return
	}
	if _, err := c.factory.Types().IsSubtype(value, target); err != nil {
		c.fail(err)
	}
}

func (c *Checker) fail(err error) {
	c.errs = append(c.errs, err)
}

func asTuple(t atm.AnnotatedType) (*atm.Declared, bool) {
	declared, ok := t.(*atm.Declared)
	if !ok || declared.Name != tupleName {
		return nil, false
	}
	return declared, true
}
