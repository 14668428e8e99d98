package actor

import (
	"bytes"
	"maps"
	"slices"

	"github.com/codewandler/pactor/internal/digest"
	"github.com/codewandler/pactor/ports/kv"
)

// EffectOp is the kind of change an invocation made to a key.
type EffectOp uint8

const (
	Modified EffectOp = iota + 1
	Deleted
)

func (o EffectOp) String() string {
	switch o {
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// StorageEffect is the final state of one key after an invocation. Value
// is set for Modified only.
type StorageEffect struct {
	Op    EffectOp
	Value []byte
}

// Outgoing is a message an invocation sent.
type Outgoing struct {
	To      AnyID
	Message AnyMessage
}

// Effects is the immutable outcome of a successful invocation: at most
// one outgoing message per destination and the final state of every key
// it wrote. Applying it is the runtime's job.
type Effects struct {
	messages []Outgoing
	storage  map[string]StorageEffect
}

func newEffects(messages map[AnyID]AnyMessage, storage map[string]StorageEffect) *Effects {
	out := make([]Outgoing, 0, len(messages))
	for _, to := range slices.SortedFunc(maps.Keys(messages), AnyID.Compare) {
		out = append(out, Outgoing{To: to, Message: messages[to]})
	}
	return &Effects{messages: out, storage: storage}
}

// Messages returns the outgoing messages ordered by destination.
func (e *Effects) Messages() []Outgoing {
	out := make([]Outgoing, len(e.messages))
	for i, m := range e.messages {
		m.Message.Data = bytes.Clone(m.Message.Data)
		out[i] = m
	}
	return out
}

// Storage returns the storage effects keyed by storage key.
func (e *Effects) Storage() map[string]StorageEffect {
	out := make(map[string]StorageEffect, len(e.storage))
	for k, se := range e.storage {
		se.Value = bytes.Clone(se.Value)
		out[k] = se
	}
	return out
}

// Ops converts the storage effects into store operations ordered by key.
func (e *Effects) Ops() []kv.Op {
	ops := make([]kv.Op, 0, len(e.storage))
	for _, k := range slices.Sorted(maps.Keys(e.storage)) {
		se := e.storage[k]
		ops = append(ops, kv.Op{Key: k, Data: bytes.Clone(se.Value), Delete: se.Op == Deleted})
	}
	return ops
}

func (e *Effects) IsEmpty() bool { return len(e.messages) == 0 && len(e.storage) == 0 }

// Digest is a content hash of the effects. Two invocations that produced
// the same messages and storage changes have the same digest.
func (e *Effects) Digest() string {
	h := digest.New(32)
	h.Uint64(uint64(len(e.storage)))
	for _, k := range slices.Sorted(maps.Keys(e.storage)) {
		se := e.storage[k]
		h.String(k).Uint64(uint64(se.Op)).Bytes(se.Value)
	}
	h.Uint64(uint64(len(e.messages)))
	for _, m := range e.messages {
		h.String(string(m.To.Kind)).
			Uint64(uint64(m.To.Instance)).
			String(string(m.Message.Kind)).
			Bytes(m.Message.Data).
			Uint64(m.Message.Callback)
	}
	return h.Hex()
}
