// Package kvtest holds behaviour tests every kv.Store implementation must
// pass.
package kvtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/pactor/ports/kv"
)

// Run exercises a fresh store from newStore with each test.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(t.Context(), "missing")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("put get delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(t.Context(), "a/b", []byte(`{"x":1}`)))

		e, err := s.Get(t.Context(), "a/b")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"x":1}`), e.Data)
		first := e.Revision

		require.NoError(t, s.Put(t.Context(), "a/b", []byte(`{"x":2}`)))
		e, err = s.Get(t.Context(), "a/b")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"x":2}`), e.Data)
		require.Greater(t, e.Revision, first)

		require.NoError(t, s.Delete(t.Context(), "a/b"))
		_, err = s.Get(t.Context(), "a/b")
		require.ErrorIs(t, err, kv.ErrNotFound)

		// deleting twice is fine
		require.NoError(t, s.Delete(t.Context(), "a/b"))
	})

	t.Run("apply", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(t.Context(), "gone", []byte(`1`)))

		require.NoError(t, kv.Apply(t.Context(), s, []kv.Op{
			{Key: "x", Data: []byte(`"a"`)},
			{Key: "gone", Delete: true},
			{Key: "y", Data: []byte(`2`)},
		}))

		_, err := s.Get(t.Context(), "gone")
		require.ErrorIs(t, err, kv.ErrNotFound)

		v, err := kv.Get[string](t.Context(), s, "x")
		require.NoError(t, err)
		require.Equal(t, "a", v)

		n, err := kv.Get[int](t.Context(), s, "y")
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})

	t.Run("reserved looking keys", func(t *testing.T) {
		s := newStore(t)
		key := "_pactor/cursor/github.com/acme/app.Sender/1"
		require.NoError(t, s.Put(t.Context(), key, []byte(`3`)))
		e, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		require.Equal(t, []byte(`3`), e.Data)
	})
}
