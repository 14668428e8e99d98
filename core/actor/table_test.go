package actor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/pactor/core/cache"
	"github.com/codewandler/pactor/ports/kv"
)

type counter struct {
	Key  string
	Peer AnyID
}

func (c *counter) Init(cx *Context) error {
	Put(cx.Storage, c.Key, 0)
	return nil
}

func (c *counter) OnPing(cx *Context, m ping) error {
	v, err := BorrowMut[int](cx.Storage, c.Key)
	if err != nil {
		return err
	}
	*v += m.N
	if !c.Peer.IsZero() {
		return cx.Dispatcher.Send(c.Peer, pong{N: *v})
	}
	return nil
}

func (c *counter) OnPong(cx *Context, m pong) error {
	Put(cx.Storage, c.Key, m.N)
	return nil
}

func (c *counter) OnTotal(cx *Context, _ CallbackID[pong], m pong) error {
	Put(cx.Storage, c.Key+"/total", m.N)
	return nil
}

func newTestTable() *Table {
	tbl := NewTable()
	RegisterActor[*counter](tbl)
	RegisterHandler(tbl, (*counter).OnPing)
	RegisterHandler(tbl, (*counter).OnPong)
	RegisterCallback(tbl, (*counter).OnTotal)
	return tbl
}

type testEnv struct {
	store *kv.MemStore
	cache cache.Cache
	table *Table
}

func newTestEnv() *testEnv {
	return &testEnv{
		store: kv.NewMemStore(),
		cache: cache.NewLRU(cache.LRUOpts{}),
		table: newTestTable(),
	}
}

func (e *testEnv) context(self AnyID, seed string) *Context {
	return NewContext(context.Background(), ContextConfig{
		Self:   self,
		Seed:   seed,
		Load:   e.store.Get,
		Cache:  e.cache,
		Router: e.table,
	})
}

func (e *testEnv) commit(t *testing.T, eff *Effects) {
	t.Helper()
	require.NoError(t, kv.Apply(t.Context(), e.store, eff.Ops()))
}

var counterID = AnyID{Kind: KindOf[*counter](), Instance: 1}

func TestTable_DispatchInit(t *testing.T) {
	env := newTestEnv()
	eff, err := env.table.DispatchInit(counterID.Kind, &counter{Key: "c"}, env.context(counterID, "init"))
	require.NoError(t, err)
	require.Empty(t, eff.Messages())
	require.Equal(t, map[string]StorageEffect{"c": {Op: Modified, Value: []byte("0")}}, eff.Storage())
}

func TestTable_DispatchHandler(t *testing.T) {
	env := newTestEnv()
	c := &counter{Key: "c", Peer: AnyID{Kind: KindOf[*counter](), Instance: 2}}

	eff, err := env.table.DispatchInit(counterID.Kind, c, env.context(counterID, "init"))
	require.NoError(t, err)
	env.commit(t, eff)

	msg, err := EncodeMessage(ping{N: 5})
	require.NoError(t, err)
	eff, err = env.table.DispatchHandler(counterID.Kind, c, env.context(counterID, "e1"), msg)
	require.NoError(t, err)

	require.Equal(t, []byte("5"), eff.Storage()["c"].Value)
	out := eff.Messages()
	require.Len(t, out, 1)
	require.Equal(t, c.Peer, out[0].To)
	got, ok := DecodeMessage[pong](out[0].Message)
	require.True(t, ok)
	require.Equal(t, pong{N: 5}, got)
}

func TestTable_MethodNotFound(t *testing.T) {
	env := newTestEnv()
	msg, err := EncodeMessage(custom{V: "x"})
	require.NoError(t, err)

	_, err = env.table.DispatchHandler(counterID.Kind, &counter{}, env.context(counterID, "e1"), msg)
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, err, ErrMethodNotFound)
	require.Equal(t, MessageKind("custom"), de.Message)

	_, err = env.table.DispatchHandler("unknown", &counter{}, env.context(counterID, "e1"), msg)
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestTable_TypeMismatch(t *testing.T) {
	env := newTestEnv()
	msg, err := EncodeMessage(ping{N: 1})
	require.NoError(t, err)

	_, err = env.table.DispatchHandler(counterID.Kind, &renamed{}, env.context(counterID, "e1"), msg)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = env.table.DispatchInit(counterID.Kind, "not an actor", env.context(counterID, "init"))
	require.ErrorIs(t, err, ErrTypeMismatch)

	msg.Data = []byte(`[]`)
	_, err = env.table.DispatchHandler(counterID.Kind, &counter{}, env.context(counterID, "e1"), msg)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestTable_DuplicateRegistrationPanics(t *testing.T) {
	tbl := newTestTable()
	require.Panics(t, func() { RegisterActor[*counter](tbl) })
	require.Panics(t, func() { RegisterHandler(tbl, (*counter).OnPing) })
	require.Panics(t, func() { RegisterHandler(NewTable(), (*counter).OnPing) })
}

func TestTable_HandlerErrorIsReturned(t *testing.T) {
	env := newTestEnv()
	msg, err := EncodeMessage(ping{N: 1})
	require.NoError(t, err)

	// no init ran, so the counter key is missing
	_, err = env.table.DispatchHandler(counterID.Kind, &counter{Key: "c"}, env.context(counterID, "e1"), msg)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Equal(t, "c", se.Key)
}

func TestSend_RejectsUnroutableMessage(t *testing.T) {
	env := newTestEnv()
	cx := env.context(counterID, "e1")

	err := cx.Dispatcher.Send(counterID, custom{})
	require.ErrorIs(t, err, ErrMethodNotFound)
	require.Zero(t, cx.Dispatcher.Pending())

	require.Error(t, cx.Dispatcher.Send(AnyID{}, ping{}))
}

func TestSend_LastWriteWins(t *testing.T) {
	env := newTestEnv()
	cx := env.context(counterID, "e1")
	other := AnyID{Kind: counterID.Kind, Instance: 2}

	require.NoError(t, cx.Dispatcher.Send(other, ping{N: 1}))
	require.NoError(t, Send(cx, mustDowncast[*counter](t, other), ping{N: 2}))
	require.NoError(t, cx.Dispatcher.Send(counterID, ping{N: 3}))

	eff, err := cx.IntoEffects()
	require.NoError(t, err)
	out := eff.Messages()
	require.Len(t, out, 2)
	require.Equal(t, counterID, out[0].To)
	require.Equal(t, other, out[1].To)
	m, _ := DecodeMessage[ping](out[1].Message)
	require.Equal(t, 2, m.N)
}

func TestCallback_SingleUse(t *testing.T) {
	env := newTestEnv()
	c := &counter{Key: "c"}

	cx := env.context(counterID, "init")
	cb := NewCallback[pong](cx)
	require.False(t, cb.IsZero())
	require.Equal(t, counterID, cb.Owner)
	eff, err := cx.IntoEffects()
	require.NoError(t, err)
	env.commit(t, eff)

	// another actor answers through the token
	peer := AnyID{Kind: counterID.Kind, Instance: 2}
	pcx := env.context(peer, "e1")
	require.NoError(t, Call(pcx, cb, pong{N: 9}))
	eff, err = pcx.IntoEffects()
	require.NoError(t, err)
	reply := eff.Messages()[0]
	require.Equal(t, counterID, reply.To)
	require.True(t, reply.Message.IsCallback())

	eff, err = env.table.DispatchHandler(counterID.Kind, c, env.context(counterID, "e2"), reply.Message)
	require.NoError(t, err)
	require.Equal(t, []byte("9"), eff.Storage()["c/total"].Value)
	require.Equal(t, Deleted, eff.Storage()[callbackKey(counterID, cb.ID)].Op)
	env.commit(t, eff)

	_, err = env.table.DispatchHandler(counterID.Kind, c, env.context(counterID, "e3"), reply.Message)
	require.ErrorIs(t, err, ErrUnknownCallback)
}

func TestCallback_Env(t *testing.T) {
	env := newTestEnv()
	cx := env.context(counterID, "init")

	type note struct {
		Reason string `json:"reason"`
	}
	cb, err := NewCallbackWithEnv[pong](cx, note{Reason: "audit"})
	require.NoError(t, err)

	_, ok, err := CallbackEnv[note](cx)
	require.NoError(t, err)
	require.False(t, ok, "no callback is being handled")

	// same invocation, no commit needed
	require.NoError(t, cx.consumeCallback(cb.ID))
	got, ok, err := CallbackEnv[note](cx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "audit", got.Reason)
}

func TestCallback_Deterministic(t *testing.T) {
	a := newTestEnv().context(counterID, "seed")
	b := newTestEnv().context(counterID, "seed")
	c := newTestEnv().context(counterID, "other")

	ida, idb, idc := NewCallback[pong](a), NewCallback[pong](b), NewCallback[pong](c)
	require.Equal(t, ida, idb)
	require.NotEqual(t, ida, idc)
	require.NotEqual(t, ida, NewCallback[pong](a))
}

func TestEffects_DigestDeterministic(t *testing.T) {
	run := func() *Effects {
		env := newTestEnv()
		c := &counter{Key: "c", Peer: AnyID{Kind: counterID.Kind, Instance: 2}}
		eff, err := env.table.DispatchInit(counterID.Kind, c, env.context(counterID, "init"))
		require.NoError(t, err)
		env.commit(t, eff)

		msg, err := EncodeMessage(ping{N: 3})
		require.NoError(t, err)
		eff, err = env.table.DispatchHandler(counterID.Kind, c, env.context(counterID, "e1"), msg)
		require.NoError(t, err)
		return eff
	}

	a, b := run(), run()
	require.Equal(t, a.Digest(), b.Digest())
	require.Equal(t, a.Ops(), b.Ops())
	require.Equal(t, a.Messages(), b.Messages())
	require.NotEqual(t, a.Digest(), (&Effects{}).Digest())
}

func TestEffects_Immutable(t *testing.T) {
	env := newTestEnv()
	cx := env.context(counterID, "e1")
	Put(cx.Storage, "k", "v")
	require.NoError(t, cx.Dispatcher.Send(counterID, ping{N: 1}))
	eff, err := cx.IntoEffects()
	require.NoError(t, err)

	digest := eff.Digest()
	eff.Storage()["k"].Value[0] = 'x'
	eff.Messages()[0].Message.Data[0] = 'x'
	eff.Ops()[0].Data[0] = 'x'
	require.Equal(t, digest, eff.Digest())
}

func mustDowncast[A any](t *testing.T, id AnyID) ID[A] {
	t.Helper()
	typed, ok := Downcast[A](id)
	require.True(t, ok)
	return typed
}

var errBoom = errors.New("boom")
