// Package session holds the state shared by every component during one inference run
package session

import (
	"log/slog"

	"github.com/cottand/qinfer/inference/constraints"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/slots"
	"github.com/cottand/qinfer/internal/log"
	"github.com/google/uuid"
)

// Session is passed by reference to every component of one inference run, instead of
// living in globals. It is not concurrency safe
type Session struct {
	ID          uuid.UUID
	Slots       *slots.Manager
	Constraints *constraints.Manager

	// Failures are irrecoverable internal errors reported during this session,
	// kept so the host can surface all of them at the end of a unit
	Failures []error

	performingFlow bool
	path           []string
	logger         *slog.Logger
}

func New() *Session {
	id := uuid.New()
	return &Session{
		ID:          id,
		Slots:       slots.NewManager(),
		Constraints: constraints.NewManager(),
		logger:      log.DefaultLogger.With("section", "inference/session", "session", id.String()),
	}
}

// PerformingFlow is true while a flow-sensitive refinement pass is running
func (s *Session) PerformingFlow() bool {
	return s.performingFlow
}

// WithFlow runs pass with PerformingFlow set, and unsets it afterwards even if pass fails.
// Passes cannot nest
func (s *Session) WithFlow(pass func() error) error {
	if s.performingFlow {
		return s.Fail(ierr.New(ierr.ErrFlowReentry, "a flow analysis pass is already running"))
	}
	s.performingFlow = true
	defer func() { s.performingFlow = false }()
	s.logger.Debug("starting flow pass")
	return pass()
}

// Fail records err as a failure of this session and returns it
func (s *Session) Fail(err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("failure during inference", "error", err)
	s.Failures = append(s.Failures, err)
	return err
}

// Enter pushes label onto the traversal path reported by internal errors, and returns
// the func popping it
func (s *Session) Enter(label string) (leave func()) {
	s.path = append(s.path, label)
	depth := len(s.path)
	return func() {
		s.path = s.path[:depth-1]
	}
}

// CurrentPath is the traversal position, outermost first
func (s *Session) CurrentPath() ierr.Path {
	return append(ierr.Path(nil), s.path...)
}

func (s *Session) Logger() *slog.Logger {
	return s.logger
}
