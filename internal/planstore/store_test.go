package planstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "plan-1"))
	require.NoError(t, s.Put(ctx, "plan-2"))

	planID, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "plan-2", planID)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// clearing an empty cache is fine
	require.NoError(t, s.Clear(ctx))
}
