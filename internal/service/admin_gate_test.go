package service

import (
	"kmms_simulator/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminGate_PlainCode(t *testing.T) {
	g := NewAdminGate("admin1", "")
	assert.NoError(t, g.Check("admin1"))
	assert.ErrorIs(t, g.Check("admin2"), util.ErrAdminCodeMismatch)
	assert.ErrorIs(t, g.Check(""), util.ErrAdminCodeMismatch)
}

func TestAdminGate_HashTakesPrecedence(t *testing.T) {
	hash, err := HashAdminCode("s3cret")
	require.NoError(t, err)

	g := NewAdminGate("admin1", hash)
	assert.NoError(t, g.Check("s3cret"))
	assert.ErrorIs(t, g.Check("admin1"), util.ErrAdminCodeMismatch)
}

func TestAdminGate_NothingConfigured(t *testing.T) {
	g := NewAdminGate("", "")
	assert.ErrorIs(t, g.Check("anything"), util.ErrAdminCodeMismatch)

	g.Update("new", "")
	assert.NoError(t, g.Check("new"))
}
