// Package journaltest holds behaviour tests every journal.Log
// implementation must pass.
package journaltest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
)

var (
	alice = actor.AnyID{Kind: "test.Alice", Instance: 1}
	bob   = actor.AnyID{Kind: "test.Bob", Instance: 2}
)

func msg(s string) actor.AnyMessage {
	return actor.AnyMessage{Kind: "test.Msg", Data: []byte(`"` + s + `"`)}
}

// Run exercises a fresh log from newLog with each test.
func Run(t *testing.T, newLog func(t *testing.T) journal.Log) {
	t.Run("gapless per actor", func(t *testing.T) {
		l := newLog(t)
		for i := range 3 {
			idx, err := l.Append(t.Context(), alice, bob, msg(fmt.Sprint(i)))
			require.NoError(t, err)
			require.Equal(t, journal.Index(i), idx)
		}
		idx, err := l.Append(t.Context(), bob, alice, msg("x"))
		require.NoError(t, err)
		require.Equal(t, journal.Zero, idx)

		e, err := l.Read(t.Context(), bob, 1)
		require.NoError(t, err)
		require.NotNil(t, e)
		require.Equal(t, journal.Index(1), e.Index)
		require.Equal(t, journal.Index(2), e.Next())
		require.Equal(t, alice, e.From)
		require.Equal(t, bob, e.To)
		require.Equal(t, msg("1"), e.Message)
		require.NotEmpty(t, e.ID)
	})

	t.Run("read past end", func(t *testing.T) {
		l := newLog(t)
		e, err := l.Read(t.Context(), alice, journal.Zero)
		require.NoError(t, err)
		require.Nil(t, e)

		_, err = l.Append(t.Context(), bob, alice, msg("a"))
		require.NoError(t, err)
		e, err = l.Read(t.Context(), alice, 1)
		require.NoError(t, err)
		require.Nil(t, e)
	})

	t.Run("append is idempotent by id", func(t *testing.T) {
		l := newLog(t)
		first, err := l.Append(t.Context(), alice, bob, msg("a"), journal.WithID("e-1"))
		require.NoError(t, err)
		again, err := l.Append(t.Context(), alice, bob, msg("a"), journal.WithID("e-1"))
		require.NoError(t, err)
		require.Equal(t, first, again)

		next, err := l.Append(t.Context(), alice, bob, msg("b"), journal.WithID("e-2"))
		require.NoError(t, err)
		require.Equal(t, first+1, next)

		e, err := l.Read(t.Context(), bob, first)
		require.NoError(t, err)
		require.Equal(t, "e-1", e.ID)
	})

	t.Run("trim", func(t *testing.T) {
		l := newLog(t)
		for i := range 4 {
			_, err := l.Append(t.Context(), alice, bob, msg(fmt.Sprint(i)))
			require.NoError(t, err)
		}
		require.NoError(t, l.Trim(t.Context(), bob, 2))

		_, err := l.Read(t.Context(), bob, 1)
		require.ErrorIs(t, err, journal.ErrTrimmed)

		e, err := l.Read(t.Context(), bob, 2)
		require.NoError(t, err)
		require.Equal(t, msg("2"), e.Message)

		// indices keep counting after a trim
		idx, err := l.Append(t.Context(), alice, bob, msg("4"))
		require.NoError(t, err)
		require.Equal(t, journal.Index(4), idx)

		// trimming backwards is a no-op
		require.NoError(t, l.Trim(t.Context(), bob, 1))
		_, err = l.Read(t.Context(), bob, 1)
		require.ErrorIs(t, err, journal.ErrTrimmed)

		if h, ok := l.(journal.Header); ok {
			head, err := h.Head(t.Context(), bob)
			require.NoError(t, err)
			require.Equal(t, journal.Index(5), head)
		}
	})

	t.Run("concurrent appends stay gapless", func(t *testing.T) {
		l := newLog(t)
		const n = 20
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Append(t.Context(), alice, bob, msg(fmt.Sprint(i)))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		seen := map[string]bool{}
		for i := range n {
			e, err := l.Read(t.Context(), bob, journal.Index(i))
			require.NoError(t, err)
			require.NotNil(t, e, "index %d", i)
			seen[string(e.Message.Data)] = true
		}
		require.Len(t, seen, n)

		e, err := l.Read(t.Context(), bob, n)
		require.NoError(t, err)
		require.Nil(t, e)
	})

	t.Run("head", func(t *testing.T) {
		l := newLog(t)
		h, ok := l.(journal.Header)
		if !ok {
			t.Skip("log does not report its head")
		}
		head, err := h.Head(t.Context(), alice)
		require.NoError(t, err)
		require.Equal(t, journal.Zero, head)

		_, err = l.Append(t.Context(), bob, alice, msg("a"))
		require.NoError(t, err)
		head, err = h.Head(t.Context(), alice)
		require.NoError(t, err)
		require.Equal(t, journal.Index(1), head)
	})
}
