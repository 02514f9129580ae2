// Package ierr holds the internal errors of constraint generation.
//
// None of these are user errors: each one means the core was handed an input shape it
// does not support, or that an invariant of the core has been broken. They are built on
// github.com/cockroachdb/errors assertion failures, so they carry a stack trace, and wrap
// one of the sentinels below so callers can match them with errors.Is.
package ierr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnsupportedRawType  = errors.New("unsupported raw type")
	ErrMissingTypeArgument = errors.New("type parameter missing from inferred type arguments")
	ErrUnknownSlot         = errors.New("unknown slot")
	ErrFlowReentry         = errors.New("flow analysis re-entered")
	ErrNotInFlow           = errors.New("refinement outside of flow analysis")
	ErrUnhandledTree       = errors.New("unhandled tree")
	ErrUnhandledKind       = errors.New("unhandled kind")
	ErrNoLeastUpperBound   = errors.New("no unique least upper bound")
)

// Path is the traversal position reported alongside internal errors, outermost first
type Path []string

func (p Path) String() string {
	if len(p) == 0 {
		return "<no path>"
	}
	return strings.Join(p, " > ")
}

// New returns an assertion failure wrapping sentinel, so both the standard library's and
// cockroachdb's errors.Is match it
func New(sentinel error, format string, args ...any) error {
	return errors.WithAssertionFailure(errors.WrapWithDepthf(1, sentinel, format, args...))
}

// WithPath decorates err with the traversal position it happened at
func WithPath(err error, path Path) error {
	if err == nil {
		return nil
	}
	return errors.WithDetailf(err, "currentPath: ( %s )", path)
}

// WithTypes decorates err with the offending operands
func WithTypes(err error, named ...fmt.Stringer) error {
	if err == nil {
		return nil
	}
	for i, s := range named {
		err = errors.WithDetailf(err, "operand %d: %v", i, s)
	}
	return err
}

// IsInternal reports whether err was produced by this package
func IsInternal(err error) bool {
	return errors.IsAssertionFailure(err)
}

// Details returns every detail attached to err, innermost first
func Details(err error) []string {
	return errors.GetAllDetails(err)
}
