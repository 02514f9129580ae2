package gohost

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/program"
)

// RunFlow visits the body of the function declared by classTree in source order. Reads
// of local variables are queried from flow, and every plain assignment to a local
// variable is reported as a refinement after its value has been read.
//
// Branches are not joined: a read sees the refinement of the assignment closest before
// it in source order. Function literals are skipped, since they may run at any time
func (h *Host) RunFlow(classTree program.Tree, flow factory.FlowContext) error {
	fd, ok := h.bodies[classTree]
	if !ok || fd.Body == nil {
		return nil
	}
	p := &flowPass{host: h, flow: flow}
	ast.Inspect(fd.Body, p.visit)
	if len(p.errs) > 0 {
		return errors.Wrapf(errors.Join(p.errs...), "flow analysis of %s", fd.Name.Name)
	}
	return nil
}

type flowPass struct {
	host *Host
	flow factory.FlowContext
	errs []error
}

func (p *flowPass) visit(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.FuncLit:
		return false
	case *ast.AssignStmt:
		p.assign(n)
		return false
	case *ast.Ident:
		p.read(n)
	}
	return true
}

func (p *flowPass) assign(stmt *ast.AssignStmt) {
	for _, rhs := range stmt.Rhs {
		ast.Inspect(rhs, p.visit)
	}
	for _, lhs := range stmt.Lhs {
		if _, ok := lhs.(*ast.Ident); !ok {
			// index and selector targets read their operands
			ast.Inspect(lhs, p.visit)
		}
	}
	if stmt.Tok != token.ASSIGN && stmt.Tok != token.DEFINE || len(stmt.Lhs) != len(stmt.Rhs) {
		return
	}
	for i, lhs := range stmt.Lhs {
		ident, ok := lhs.(*ast.Ident)
		if !ok || p.host.info.Defs[ident] != nil {
			continue
		}
		assignment, ok := p.host.Assignment(stmt, i, lhs, stmt.Rhs[i])
		if !ok {
			continue
		}
		if err := p.flow.Refine(assignment); err != nil {
			p.errs = append(p.errs, err)
		}
	}
}

func (p *flowPass) read(ident *ast.Ident) {
	v, ok := p.host.info.Uses[ident].(*types.Var)
	if !ok || !p.host.kindOf(v).IsLocal() {
		return
	}
	tree, ok := p.host.Tree(ident)
	if !ok {
		return
	}
	if _, err := p.flow.AnnotatedTypeOfTree(tree); err != nil {
		p.errs = append(p.errs, err)
	}
}
