// Package cache provides the in-memory caches backing an actor's storage
// view.
//
//   - [LRU]: bounded, least-recently-used eviction, safe for concurrent use
//   - [Nop]: caches nothing; every access goes to the backing store
//
// A cache only ever holds values that were committed to (or loaded from)
// the store, so evicting an entry is always safe:
//
//	c := cache.NewLRU(cache.LRUOpts{Size: 1024})
//	c.Put("counter", &n)
//	if v, ok := c.Get("counter"); ok {
//	    // v is the cached value
//	}
package cache
