// Package actor defines persistent actors and the machinery that runs one
// invocation of them.
//
// An actor is a Go value implementing [Actor]. It reacts to messages by
// reading and writing keyed storage and by sending messages to other
// actors. A handler never performs I/O of its own: everything it does is
// captured in its [Context] and turned into [Effects] when it returns.
// Applying effects, and making that durable, is the runtime's job.
//
// # Registering
//
// Actor types and their handlers go into a [Table]:
//
//	actor.RegisterActor[*Counter](rt)
//	actor.RegisterHandler(rt, (*Counter).OnAdd)
//	actor.RegisterCallback(rt, (*Counter).OnTotal)
//
// Kinds default to the Go type name. Implement [Kinder] or [MessageKinder]
// to choose a name that survives refactoring.
//
// # Storage
//
// [Put], [Get], [BorrowMut] and [Storage.Remove] operate on the staged
// view of the invocation. A failing access poisons the invocation, so a
// handler cannot commit half of its work by ignoring an error.
//
// # Callbacks
//
// [NewCallback] returns a [CallbackID] another actor can use once, with
// [Call], to deliver a reply. The owner's callback handler receives it.
package actor
