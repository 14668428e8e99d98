package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Memory(t *testing.T) {
	type Foo struct {
		Name string
		Age  int
	}
	s := NewMemStore()

	_, err := Get[Foo](t.Context(), s, "foobar")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(t.Context(), s, "p1", Foo{Name: "P1", Age: 10}))
	require.NoError(t, Put(t.Context(), s, "p2", Foo{Name: "P2", Age: 20}))

	loaded, err := Get[Foo](t.Context(), s, "p1")
	require.NoError(t, err)
	require.Equal(t, Foo{Name: "P1", Age: 10}, loaded)

	require.NoError(t, s.Delete(t.Context(), "p1"))
	require.NoError(t, s.Delete(t.Context(), "p1"))
	_, err = Get[Foo](t.Context(), s, "p1")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_Memory_Batch(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put(t.Context(), "gone", []byte(`1`)))

	require.NoError(t, Apply(t.Context(), s, []Op{
		{Key: "a", Data: []byte(`1`)},
		{Key: "gone", Delete: true},
		{Key: "a", Data: []byte(`2`)},
	}))
	require.Equal(t, map[string][]byte{"a": []byte(`2`)}, s.Snapshot())
}

// putOnly hides the Batcher implementation of the wrapped store.
type putOnly struct {
	Store
	fail string
}

func (p putOnly) Put(ctx context.Context, key string, data []byte) error {
	if key == p.fail {
		return errors.New("write failed")
	}
	return p.Store.Put(ctx, key, data)
}

func Test_Apply_Sequential(t *testing.T) {
	mem := NewMemStore()
	err := Apply(t.Context(), putOnly{Store: mem, fail: "b"}, []Op{
		{Key: "a", Data: []byte(`1`)},
		{Key: "b", Data: []byte(`2`)},
	})
	require.Error(t, err)

	_, err = mem.Get(t.Context(), "a")
	require.NoError(t, err)
	_, err = mem.Get(t.Context(), "b")
	require.ErrorIs(t, err, ErrNotFound)
}
