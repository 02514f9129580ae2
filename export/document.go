// Package export writes the slots and constraints of an inference session in the forms
// external solvers consume: a YAML document, or rows of a SQLite database.
package export

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/session"
	"github.com/cottand/qinfer/inference/typesys"
	"gopkg.in/yaml.v3"
)

// Document is everything a solver needs to solve one session
type Document struct {
	Session     string       `yaml:"session"`
	TypeSystem  string       `yaml:"typeSystem"`
	Qualifiers  []Qualifier  `yaml:"qualifiers"`
	Slots       []Slot       `yaml:"slots"`
	Constraints []Constraint `yaml:"constraints"`
	Failures    []string     `yaml:"failures,omitempty"`
}

type Qualifier struct {
	Name string `yaml:"name"`
	// Supertypes are the strict supertypes of the qualifier in the lattice
	Supertypes []string `yaml:"supertypes,omitempty"`
}

// Slot is a model.Slot flattened into a record. The fields referencing other slots are
// set according to Kind
type Slot struct {
	ID          uint64 `yaml:"id"`
	Kind        string `yaml:"kind"`
	Location    string `yaml:"location,omitempty"`
	Qualifier   string `yaml:"qualifier,omitempty"`
	Refined     uint64 `yaml:"refined,omitempty"`
	Potential   uint64 `yaml:"potential,omitempty"`
	Alternative uint64 `yaml:"alternative,omitempty"`
	Left        uint64 `yaml:"left,omitempty"`
	Right       uint64 `yaml:"right,omitempty"`
}

// Constraint is a model.Constraint as a record. For subtype constraints First is the
// subtype
type Constraint struct {
	Kind   string `yaml:"kind"`
	First  uint64 `yaml:"first"`
	Second uint64 `yaml:"second"`
}

const (
	SubtypeKind  = "subtype"
	EqualityKind = "equality"
)

var _ model.Serializer[Slot, Constraint] = recordSerializer{}

type recordSerializer struct{}

func base(s model.Slot) Slot {
	rec := Slot{ID: uint64(s.ID()), Kind: s.Kind().String()}
	if !s.Location().IsMissing() {
		rec.Location = s.Location().String()
	}
	return rec
}

func (recordSerializer) SerializeVariableSlot(s *model.VariableSlot) Slot { return base(s) }

func (recordSerializer) SerializeConstantSlot(s *model.ConstantSlot) Slot {
	rec := base(s)
	rec.Qualifier = string(s.Value())
	return rec
}

func (recordSerializer) SerializeRefinementVariableSlot(s *model.RefinementVariableSlot) Slot {
	rec := base(s)
	rec.Refined = uint64(s.Refined().ID())
	return rec
}

func (recordSerializer) SerializeExistentialVariableSlot(s *model.ExistentialVariableSlot) Slot {
	rec := base(s)
	rec.Potential, rec.Alternative = uint64(s.Potential().ID()), uint64(s.Alternative().ID())
	return rec
}

func (recordSerializer) SerializeCombVariableSlot(s *model.CombVariableSlot) Slot {
	rec := base(s)
	rec.Left, rec.Right = uint64(s.Left().ID()), uint64(s.Right().ID())
	return rec
}

func (recordSerializer) SerializeSubtypeConstraint(c model.SubtypeConstraint) Constraint {
	return Constraint{Kind: SubtypeKind, First: uint64(c.Sub.ID()), Second: uint64(c.Super.ID())}
}

func (recordSerializer) SerializeEqualityConstraint(c model.EqualityConstraint) Constraint {
	return Constraint{Kind: EqualityKind, First: uint64(c.First.ID()), Second: uint64(c.Second.ID())}
}

// NewDocument captures the current slots, constraints and failures of s
func NewDocument(s *session.Session, system typesys.System) (*Document, error) {
	slots, constraints, err := model.SerializeAll(s.Slots.Slots(), s.Constraints.All(), recordSerializer{})
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize session")
	}
	doc := &Document{
		Session:     s.ID.String(),
		TypeSystem:  system.Name(),
		Qualifiers:  qualifiersOf(system.Lattice()),
		Slots:       slots,
		Constraints: constraints,
	}
	for _, failure := range s.Failures {
		doc.Failures = append(doc.Failures, failure.Error())
	}
	return doc, nil
}

func qualifiersOf(l *lattice.Lattice) []Qualifier {
	qs := l.Qualifiers()
	out := make([]Qualifier, 0, len(qs))
	for _, q := range qs {
		rec := Qualifier{Name: string(q)}
		for _, super := range qs {
			if super != q && l.IsSubtype(q, super) {
				rec.Supertypes = append(rec.Supertypes, string(super))
			}
		}
		out = append(out, rec)
	}
	return out
}

func WriteYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "could not encode document")
	}
	return enc.Close()
}

func ReadYAML(r io.Reader) (*Document, error) {
	doc := &Document{}
	if err := yaml.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "could not decode document")
	}
	return doc, nil
}
