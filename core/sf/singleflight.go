// Package sf wraps golang.org/x/sync/singleflight with a typed API.
//
// Actors running on different tasks may lazily load the same key from the
// shared store at the same time; a Group collapses those loads into one
// store round trip:
//
//	var loads sf.Group[kv.Entry]
//	entry, shared, err := loads.Do(key, func() (kv.Entry, error) {
//	    return store.Get(ctx, key)
//	})
package sf

import "golang.org/x/sync/singleflight"

// Group deduplicates concurrent calls with the same key. The zero value is
// ready to use.
type Group[T any] struct {
	group singleflight.Group
}

// Do executes fn for key unless a call for key is already in flight, in
// which case it waits for that call and returns its result. shared reports
// whether the result was handed to more than one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (out T, shared bool, err error) {
	v, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if v != nil {
		out = v.(T)
	}
	return out, shared, err
}

// Forget drops any in-flight bookkeeping for key so the next Do runs fn.
func (g *Group[T]) Forget(key string) { g.group.Forget(key) }
