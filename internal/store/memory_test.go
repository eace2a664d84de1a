package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"rollcall/internal/store"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("get absent key", func(t *testing.T) {
		m := store.NewMemory()
		_, ok, err := m.Get(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		m := store.NewMemory()
		require.NoError(t, m.Set(ctx, "k", []byte(`{"a":1}`)))

		v, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte(`{"a":1}`), v)
	})

	t.Run("last writer wins", func(t *testing.T) {
		m := store.NewMemory()
		require.NoError(t, m.Set(ctx, "k", []byte("one")))
		require.NoError(t, m.Set(ctx, "k", []byte("two")))

		v, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("two"), v)
	})

	t.Run("stored value is isolated from caller mutation", func(t *testing.T) {
		m := store.NewMemory()
		buf := []byte("abc")
		require.NoError(t, m.Set(ctx, "k", buf))
		buf[0] = 'x'

		v, _, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), v)
	})

	t.Run("delete", func(t *testing.T) {
		m := store.NewMemory()
		require.NoError(t, m.Set(ctx, "k", []byte("v")))
		require.NoError(t, m.Delete(ctx, "k"))

		_, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, m.Delete(ctx, "k"))
	})
}
