// Package constraints holds the deduplicated constraint set of a session
package constraints

import (
	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/internal/log"
	set "github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "inference/constraints")

// keyed adapts a constraint to set.Hasher, so value-equal constraints collide
type keyed struct {
	model.Constraint
}

func (k keyed) Hash() string { return k.Key() }

// Manager is an insertion-ordered set of constraints. It is not safe for concurrent use
type Manager struct {
	seen  *set.HashSet[keyed, string]
	order []model.Constraint
}

func NewManager() *Manager {
	return &Manager{
		seen: set.NewHashSet[keyed, string](0),
	}
}

// Add inserts c unless a value-equal constraint is present, and reports whether it did
func (m *Manager) Add(c model.Constraint) bool {
	if !m.seen.Insert(keyed{c}) {
		return false
	}
	m.order = append(m.order, c)
	logger.Debug("added constraint", "constraint", c)
	return true
}

// AddAll adds every constraint in cs and returns those which were new
func (m *Manager) AddAll(cs ...model.Constraint) []model.Constraint {
	var added []model.Constraint
	for _, c := range cs {
		if m.Add(c) {
			added = append(added, c)
		}
	}
	return added
}

func (m *Manager) Contains(c model.Constraint) bool {
	return m.seen.Contains(keyed{c})
}

// All returns the constraints in insertion order
func (m *Manager) All() []model.Constraint {
	return append([]model.Constraint(nil), m.order...)
}

func (m *Manager) Len() int { return len(m.order) }
