package session_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/inference/ierr"
	"github.com/cottand/qinfer/inference/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFlow(t *testing.T) {
	s := session.New()
	assert.False(t, s.PerformingFlow())

	err := s.WithFlow(func() error {
		assert.True(t, s.PerformingFlow())
		nested := s.WithFlow(func() error { return nil })
		assert.True(t, errors.Is(nested, ierr.ErrFlowReentry))
		return errors.New("pass failed")
	})
	require.Error(t, err)
	assert.False(t, s.PerformingFlow(), "flow must be unset after a failed pass")
	assert.Len(t, s.Failures, 1, "only the nested pass is a session failure")
}

func TestEnterPath(t *testing.T) {
	s := session.New()
	leaveOuter := s.Enter("f")
	leaveInner := s.Enter("x")
	assert.Equal(t, ierr.Path{"f", "x"}, s.CurrentPath())
	leaveInner()
	assert.Equal(t, ierr.Path{"f"}, s.CurrentPath())
	leaveOuter()
	assert.Empty(t, s.CurrentPath())
}

func TestSessionsAreIndependent(t *testing.T) {
	a, b := session.New(), session.New()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Slots, b.Slots)
	assert.Nil(t, a.Fail(nil))
	assert.Empty(t, a.Failures)
}
