// Package kv is the port for the durable key-value store that backs actor
// storage. Values are opaque bytes produced by the value codec; a store
// must hand back exactly the bytes it was given.
package kv

import (
	"context"
	"errors"

	"github.com/codewandler/pactor/internal/codec"
)

var (
	ErrNotFound = errors.New("not found")
)

type Entry struct {
	Data     []byte
	Revision uint64 // store specific; zero when the store does not track revisions
}

type Store interface {
	// Get returns ErrNotFound if key is absent.
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, data []byte) error
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Op is one write in a batch: a put of Data, or a delete.
type Op struct {
	Key    string
	Data   []byte
	Delete bool
}

// Batcher is implemented by stores that can apply several writes
// atomically.
type Batcher interface {
	Batch(ctx context.Context, ops []Op) error
}

// Apply writes ops to store, atomically if the store implements Batcher and
// one op at a time otherwise.
func Apply(ctx context.Context, store Store, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if b, ok := store.(Batcher); ok {
		return b.Batch(ctx, ops)
	}
	for _, op := range ops {
		var err error
		if op.Delete {
			err = store.Delete(ctx, op.Key)
		} else {
			err = store.Put(ctx, op.Key, op.Data)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = codec.Default.Unmarshal(entry.Data, &out)
	return
}
