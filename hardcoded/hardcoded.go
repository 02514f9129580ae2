// Package hardcoded is an example type system tracking which values may be
// hardcoded in source, such as string literals standing for secrets.
//
// It is registered as "hardcoded" on import.
package hardcoded

import (
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/program"
	"github.com/cottand/qinfer/inference/typesys"
)

const Name = "hardcoded"

const (
	MaybeHardcoded lattice.Qualifier = "MaybeHardcoded"
	NotHardcoded   lattice.Qualifier = "NotHardcoded"
	PolyHardcoded  lattice.Qualifier = "PolyHardcoded"
)

func init() {
	typesys.Register(Name, func() typesys.System { return New() })
}

type System struct {
	lattice *lattice.Lattice
}

func New() *System {
	return &System{
		lattice: lattice.MustNew(
			lattice.Decl{Qualifier: MaybeHardcoded},
			lattice.Decl{Qualifier: NotHardcoded, SubtypeOf: []lattice.Qualifier{MaybeHardcoded}},
			lattice.Decl{Qualifier: PolyHardcoded, Polymorphic: true},
		),
	}
}

func (*System) Name() string                { return Name }
func (s *System) Lattice() *lattice.Lattice { return s.lattice }

// LiteralQualifier: null can never be a hardcoded secret, any other literal may be
func (*System) LiteralQualifier(kind program.LiteralKind) lattice.Qualifier {
	if kind == program.NullLiteral {
		return NotHardcoded
	}
	return MaybeHardcoded
}

func (*System) DefaultQualifier() lattice.Qualifier { return NotHardcoded }
