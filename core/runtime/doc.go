// Package runtime hosts persistent actors and drives them from their logs.
//
// A [Runtime] owns the dispatch table, a key-value store for actor storage
// and one replay cursor per actor. Starting an actor runs its Init once;
// afterwards the actor consumes its log entry by entry. For every entry the
// handler runs inside a recover boundary, and its effects are applied in a
// fixed order: outgoing messages are appended, then the storage changes
// and the advanced cursor are written in a single batch. A crash between
// the two steps is harmless because appended entries carry IDs derived
// from the entry that produced them.
//
// Failures are isolated per actor. Routing, storage and handler failures
// stall the affected actor at the failing entry and are reported as
// [RuntimeError]; log and store I/O failures are retried.
//
//	rt := runtime.New(runtime.Options{Store: store})
//	actor.RegisterActor[*Sender](rt)
//	actor.RegisterCallback(rt, (*Sender).OnResult)
//	id := runtime.AddActor(rt, &Sender{}, log)
//	err := rt.Run(ctx)
package runtime
