// Package kvtest holds the compliance suite every kv.Storage backend runs.
package kvtest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// Run exercises the kv.Storage contract against s. Keys are prefixed with
// the test name so a shared backend can be reused across runs.
func Run(t *testing.T, s kv.Storage) {
	t.Helper()
	ctx := context.Background()
	prefix := strings.NewReplacer("/", ".", " ", "_").Replace(t.Name()) + "."

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, prefix+"set", "value"))
		val, ok, err := s.Get(ctx, prefix+"set")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value", val)
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, ok, err := s.Get(ctx, prefix+"missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, prefix+"ow", "v1"))
		require.NoError(t, s.Set(ctx, prefix+"ow", "v2"))
		val, ok, err := s.Get(ctx, prefix+"ow")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v2", val)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, prefix+"del", "gone"))
		require.NoError(t, s.Delete(ctx, prefix+"del"))
		_, ok, err := s.Get(ctx, prefix+"del")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, prefix+"never"))
	})

	t.Run("LargeJSONValue", func(t *testing.T) {
		payload := `[` + strings.Repeat(`{"id":"x","title":"Untitled","content":"héllo…"},`, 200) + `{}]`
		require.NoError(t, s.Set(ctx, prefix+"large", payload))
		val, ok, err := s.Get(ctx, prefix+"large")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, payload, val)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, prefix+"empty", ""))
		val, ok, err := s.Get(ctx, prefix+"empty")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "", val)
	})
}
