package journal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/core/journal/journaltest"
)

func TestMemory(t *testing.T) {
	journaltest.Run(t, func(*testing.T) journal.Log { return journal.NewMemory() })
}

func TestMemory_IDConflict(t *testing.T) {
	l := journal.NewMemory()
	a := actor.AnyID{Kind: "a", Instance: 1}
	b := actor.AnyID{Kind: "b", Instance: 1}

	_, err := l.Append(t.Context(), a, b, actor.AnyMessage{Kind: "m"}, journal.WithID("x"))
	require.NoError(t, err)
	_, err = l.Append(t.Context(), a, a, actor.AnyMessage{Kind: "m"}, journal.WithID("x"))
	require.ErrorIs(t, err, journal.ErrIDConflict)
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	l := journal.NewMemory()
	a := actor.AnyID{Kind: "a", Instance: 1}

	_, err := l.Append(t.Context(), a, a, actor.AnyMessage{Kind: "m", Data: []byte("1")})
	require.NoError(t, err)

	e, err := l.Read(t.Context(), a, journal.Zero)
	require.NoError(t, err)
	e.Message.Data[0] = '2'

	e, err = l.Read(t.Context(), a, journal.Zero)
	require.NoError(t, err)
	require.Equal(t, []byte("1"), e.Message.Data)
}

func TestDeriveID(t *testing.T) {
	to := actor.AnyID{Kind: "a", Instance: 1}
	require.Equal(t, journal.DeriveID("s", to), journal.DeriveID("s", to))
	require.NotEqual(t, journal.DeriveID("s", to), journal.DeriveID("t", to))
	require.NotEqual(t, journal.DeriveID("s", to), journal.DeriveID("s", actor.AnyID{Kind: "a", Instance: 2}))
}

func TestNewAppendOptions(t *testing.T) {
	require.NotEmpty(t, journal.NewAppendOptions().ID)
	require.NotEqual(t, journal.NewAppendOptions().ID, journal.NewAppendOptions().ID)
	require.Equal(t, "x", journal.NewAppendOptions(journal.WithID("x")).ID)
}
