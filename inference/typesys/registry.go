// Package typesys describes the qualifier type systems inference can run for
package typesys

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/program"
)

// System is a pluggable qualifier type system
type System interface {
	Name() string
	// Lattice is the declared qualifier hierarchy, used for real decisions during flow
	Lattice() *lattice.Lattice
	// LiteralQualifier is the qualifier literals of kind implicitly carry
	LiteralQualifier(kind program.LiteralKind) lattice.Qualifier
	// DefaultQualifier annotates library code which has no source available
	DefaultQualifier() lattice.Qualifier
}

var (
	registeredMu sync.Mutex
	registered   = make(map[string]func() System)
)

// Register makes a type system available by name. It is meant to be called from init,
// and panics if name is taken
func Register(name string, fn func() System) {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if _, exists := registered[name]; exists {
		panic(fmt.Sprintf("a type system named %q is already registered", name))
	}
	registered[name] = fn
}

// Lookup builds the type system registered as name
func Lookup(name string) (System, error) {
	registeredMu.Lock()
	fn, ok := registered[name]
	registeredMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("type system %q not found, registered systems are %v", name, Names())
	}
	return fn(), nil
}

// Names are the registered type systems, sorted
func Names() []string {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
