package gohost

import (
	"context"

	"github.com/cottand/qinfer/inference/factory"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/session"
	"github.com/cottand/qinfer/inference/typesys"
)

type Options struct {
	// Dir is the directory patterns are relative to
	Dir      string
	Patterns []string
	System   typesys.System
	// Known are qualifiers of library elements, see Oracle
	Known map[string]lattice.Qualifier
}

// Generate loads the packages matching opts.Patterns and generates their constraints.
// The session is returned even when generation fails part way, so the slots and
// constraints made so far can still be inspected
func Generate(ctx context.Context, opts Options) (*session.Session, error) {
	pkgs, err := Load(ctx, opts.Dir, opts.Patterns...)
	if err != nil {
		return nil, err
	}
	host := NewHost(pkgs)
	s := session.New()
	f := factory.New(s, opts.System, host, NewOracle(host, opts.Known))
	err = NewChecker(host, f).Check(ctx)
	logger.Info("generated constraints",
		"session", s.ID.String(),
		"slots", s.Slots.Len(),
		"constraints", s.Constraints.Len(),
		"failures", len(s.Failures),
	)
	return s, err
}
