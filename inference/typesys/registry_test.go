package typesys_test

import (
	"testing"

	"github.com/cottand/qinfer/hardcoded"
	"github.com/cottand/qinfer/inference/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupRegistered(t *testing.T) {
	system, err := typesys.Lookup(hardcoded.Name)
	require.NoError(t, err)
	assert.Equal(t, hardcoded.Name, system.Name())
	assert.Contains(t, typesys.Names(), hardcoded.Name)
}

func TestLookupUnknown(t *testing.T) {
	_, err := typesys.Lookup("nullness")
	require.Error(t, err)
	assert.Contains(t, err.Error(), hardcoded.Name)
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		typesys.Register(hardcoded.Name, func() typesys.System { return hardcoded.New() })
	})
}
