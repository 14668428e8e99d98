// Package journal is the durable, per-actor ordered record of messages
// that drives actor state. Every actor's state is a function of the
// entries in its log, applied in index order.
package journal

import (
	"context"
	"errors"
	"strconv"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/internal/digest"
)

var (
	// ErrTrimmed is returned when reading below an actor's trim point.
	ErrTrimmed = errors.New("log trimmed")
	// ErrIDConflict is returned when an entry ID is reused for a different
	// recipient.
	ErrIDConflict = errors.New("entry id already used")
)

// Index is a position in one actor's log. Indices start at Zero and have
// no gaps.
type Index uint64

const Zero Index = 0

func (i Index) Next() Index    { return i + 1 }
func (i Index) String() string { return strconv.FormatUint(uint64(i), 10) }
func (i Index) Uint64() uint64 { return uint64(i) }

// Entry is one message in an actor's log.
type Entry struct {
	// ID identifies the entry across retries. Appending an entry whose ID
	// is already present is a no-op that returns the existing index.
	ID      string           `json:"id"`
	From    actor.AnyID      `json:"from"`
	To      actor.AnyID      `json:"to"`
	Message actor.AnyMessage `json:"message"`
	Index   Index            `json:"index"`
}

// Next is the index following this entry.
func (e Entry) Next() Index { return e.Index.Next() }

// Log stores entries per recipient actor.
type Log interface {
	// Append stores msg as the next entry of to's log and returns its
	// index.
	Append(ctx context.Context, from, to actor.AnyID, msg actor.AnyMessage, opts ...AppendOption) (Index, error)
	// Read returns the entry of actorID at idx, or nil when idx is past the
	// end. Reading below the trim point fails with ErrTrimmed.
	Read(ctx context.Context, actorID actor.AnyID, idx Index) (*Entry, error)
	// Trim drops the entries of actorID below idx.
	Trim(ctx context.Context, actorID actor.AnyID, idx Index) error
}

// Header is implemented by logs that can report where an actor's log ends.
type Header interface {
	// Head returns the index the next append to actorID would receive.
	Head(ctx context.Context, actorID actor.AnyID) (Index, error)
}

type (
	AppendOptions struct {
		ID string
	}

	AppendOption func(*AppendOptions)
)

// WithID sets the entry ID. Appends without an ID get a random one and are
// therefore never deduplicated.
func WithID(id string) AppendOption {
	return func(o *AppendOptions) { o.ID = id }
}

// NewAppendOptions applies opts over the defaults.
func NewAppendOptions(opts ...AppendOption) AppendOptions {
	var o AppendOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.ID == "" {
		o.ID = gonanoid.Must()
	}
	return o
}

// DeriveID computes the entry ID of a message sent to `to` by the
// invocation identified by seed. Replaying the same invocation yields the
// same ID, which makes re-applied appends idempotent.
func DeriveID(seed string, to actor.AnyID) string {
	return digest.New(16).String(seed).String(to.String()).Hex()
}
