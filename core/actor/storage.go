package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/codewandler/pactor/core/cache"
	"github.com/codewandler/pactor/core/ds"
	"github.com/codewandler/pactor/internal/codec"
	"github.com/codewandler/pactor/ports/kv"
)

// ReservedPrefix marks keys owned by the runtime itself. Handlers must not
// write keys with this prefix.
const ReservedPrefix = "_pactor/"

// Loader reads a committed value from the backing store. It returns an
// error wrapping [kv.ErrNotFound] for absent keys.
type Loader func(ctx context.Context, key string) (kv.Entry, error)

type slotOp uint8

const (
	slotRead slotOp = iota
	slotModified
	slotDeleted
)

// slot is the per-invocation view of one key. value is a *V or nil when
// the key is absent.
type slot struct {
	op    slotOp
	value any
}

// Storage is the key-value view a handler works against. Reads go through
// the invocation's staged writes, then the actor's cache, then the store.
// Writes are staged and become storage effects when the invocation ends.
//
// The first failed access poisons the invocation: even if the handler
// ignores the error, [Context.IntoEffects] reports it.
type Storage struct {
	ctx      context.Context
	load     Loader
	cache    cache.Cache
	onLookup func(hit bool)

	slots   map[string]*slot
	touched *ds.Set[string]
	err     error
}

func newStorage(ctx context.Context, load Loader, c cache.Cache, onLookup func(bool)) *Storage {
	if c == nil {
		c = cache.NewNop()
	}
	if load == nil {
		load = func(context.Context, string) (kv.Entry, error) { return kv.Entry{}, kv.ErrNotFound }
	}
	if onLookup == nil {
		onLookup = func(bool) {}
	}
	return &Storage{
		ctx:      ctx,
		load:     load,
		cache:    c,
		onLookup: onLookup,
		slots:    make(map[string]*slot),
		touched:  ds.NewSet[string](),
	}
}

// Err returns the error that poisoned this invocation, if any.
func (s *Storage) Err() error { return s.err }

func (s *Storage) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *Storage) stage(key string, op slotOp, value any) {
	s.touched.Add(key)
	if sl, ok := s.slots[key]; ok {
		sl.op = op
		sl.value = value
		return
	}
	s.slots[key] = &slot{op: op, value: value}
}

// Put stages v under key and makes it visible to later reads.
func Put[V any](s *Storage, key string, v V) {
	p := new(V)
	*p = v
	s.stage(key, slotModified, p)
	s.cache.Put(key, p)
}

// BorrowMut returns a mutable reference to the value under key. Changes
// made through it are recorded as a modification. An absent key fails
// with [ErrKeyNotFound].
func BorrowMut[V any](s *Storage, key string) (*V, error) {
	p, err := lookup[V](s, key)
	if err != nil {
		return nil, s.fail(err)
	}
	if p == nil {
		return nil, s.fail(storageErr(key, ErrKeyNotFound, nil))
	}
	s.stage(key, slotModified, p)
	return p, nil
}

// Get returns a copy of the value under key and whether it exists. The
// copy is shallow: reference types inside it must be treated as read-only.
func Get[V any](s *Storage, key string) (V, bool, error) {
	var zero V
	p, err := lookup[V](s, key)
	if err != nil {
		return zero, false, s.fail(err)
	}
	if p == nil {
		return zero, false, nil
	}
	return *p, true, nil
}

// Has reports whether key currently holds a value.
func (s *Storage) Has(key string) (bool, error) {
	if sl, ok := s.slots[key]; ok {
		return sl.value != nil, nil
	}
	if _, ok := s.cache.Get(key); ok {
		s.onLookup(true)
		return true, nil
	}
	s.onLookup(false)
	_, err := s.load(s.ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.touched.Add(key)
		s.slots[key] = &slot{op: slotRead}
		return false, nil
	case err != nil:
		return false, s.fail(storageErr(key, ErrDb, err))
	}
	return true, nil
}

// Remove stages the deletion of key. Removing an absent key is not an
// error.
func (s *Storage) Remove(key string) {
	s.stage(key, slotDeleted, nil)
	s.cache.Delete(key)
}

func lookup[V any](s *Storage, key string) (*V, error) {
	if sl, ok := s.slots[key]; ok {
		if sl.value == nil {
			return nil, nil
		}
		p, converted, err := viewAs[V](key, sl.value)
		if err != nil {
			return nil, err
		}
		if converted {
			sl.value = p
			s.cache.Put(key, p)
		}
		return p, nil
	}

	if v, ok := s.cache.Get(key); ok {
		s.onLookup(true)
		p, converted, err := viewAs[V](key, v)
		if err != nil {
			return nil, err
		}
		if converted {
			s.cache.Put(key, p)
		}
		s.touched.Add(key)
		s.slots[key] = &slot{op: slotRead, value: p}
		return p, nil
	}

	s.onLookup(false)
	e, err := s.load(s.ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		s.touched.Add(key)
		s.slots[key] = &slot{op: slotRead}
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(key, ErrDb, err)
	}

	p := new(V)
	if err := codec.Default.Unmarshal(e.Data, p); err != nil {
		return nil, storageErr(key, ErrValue, err)
	}
	s.cache.Put(key, p)
	s.touched.Add(key)
	s.slots[key] = &slot{op: slotRead, value: p}
	return p, nil
}

// viewAs returns v as a *V. A value held as another type is re-decoded
// from its encoding, which gives the same result as reading it with a cold
// cache.
func viewAs[V any](key string, v any) (p *V, converted bool, err error) {
	if p, ok := v.(*V); ok {
		return p, false, nil
	}
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return nil, false, storageErr(key, ErrValue, err)
	}
	p = new(V)
	if err := codec.Default.Unmarshal(data, p); err != nil {
		return nil, false, storageErr(key, ErrValue, fmt.Errorf("have %T, want %T: %w", v, p, err))
	}
	return p, true, nil
}

// effects encodes the staged writes. Keys that were only read produce no
// effect.
func (s *Storage) effects() (map[string]StorageEffect, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]StorageEffect)
	for _, key := range ds.Sorted(s.touched) {
		sl := s.slots[key]
		switch sl.op {
		case slotModified:
			data, err := codec.Default.Marshal(sl.value)
			if err != nil {
				return nil, s.fail(storageErr(key, ErrValue, err))
			}
			out[key] = StorageEffect{Op: Modified, Value: data}
		case slotDeleted:
			out[key] = StorageEffect{Op: Deleted}
		}
	}
	return out, nil
}

// evict drops every key this invocation touched from the cache, so values
// written by a failed invocation are not observed later.
func (s *Storage) evict() {
	s.touched.ForEach(s.cache.Delete)
}
