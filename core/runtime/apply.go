package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/internal/codec"
	"github.com/codewandler/pactor/ports/kv"
)

// load reads a committed value, sharing in-flight reads of the same key
// between actors.
func (r *Runtime) load(ctx context.Context, key string) (kv.Entry, error) {
	e, _, err := r.loads.Do(key, func() (kv.Entry, error) {
		return r.store.Get(ctx, key)
	})
	return e, err
}

// logFor picks the log a message to `to` is appended to: the recipient's
// own log when it is hosted here, the sender's otherwise.
func (r *Runtime) logFor(to actor.AnyID, sender *instance) journal.Log {
	if dst, ok := r.instance(to); ok {
		return dst.log
	}
	return sender.log
}

// apply makes eff durable and moves inst's cursor to next.
//
// Messages are appended first. Their IDs derive from seed, so if the
// storage write below fails, or the process dies before it, replaying the
// same entry appends nothing new. Storage effects and the cursor are then
// written in one batch.
func (r *Runtime) apply(ctx context.Context, inst *instance, eff *actor.Effects, seed string, next journal.Index) *RuntimeError {
	msgs := eff.Messages()
	for _, out := range msgs {
		id := journal.DeriveID(seed, out.To)
		if _, err := r.logFor(out.To, inst).Append(ctx, inst.id, out.To, out.Message, journal.WithID(id)); err != nil {
			return &RuntimeError{
				Category: CategoryLog,
				Retry:    true,
				Err:      fmt.Errorf("append to %s: %w", out.To, err),
			}
		}
	}
	if len(msgs) > 0 {
		r.metrics.MessagesAppended(string(inst.id.Kind), len(msgs))
	}

	cur, err := codec.Default.Marshal(next)
	if err != nil {
		return &RuntimeError{Category: CategoryStorage, Err: fmt.Errorf("%w: encode cursor: %w", actor.ErrValue, err)}
	}
	ops := append(eff.Ops(), kv.Op{Key: cursorKey(inst.id), Data: cur})
	err = kv.Apply(ctx, r.store, ops)
	// a load that started before this write must not be joined by later
	// readers, even when only some ops made it to the store
	for _, op := range ops {
		r.loads.Forget(op.Key)
	}
	if err != nil {
		return &RuntimeError{
			Category: CategoryStorage,
			Retry:    true,
			Err:      fmt.Errorf("%w: write effects: %w", actor.ErrDb, err),
		}
	}
	inst.cursor.Store(uint64(next))

	for _, out := range msgs {
		r.wakeup(out.To)
	}
	return nil
}

func (r *Runtime) wakeup(id actor.AnyID) {
	inst, ok := r.instance(id)
	if !ok {
		return
	}
	select {
	case inst.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) fail(ctx context.Context, inst *instance, rerr *RuntimeError) error {
	rerr.Actor = inst.id
	if !rerr.Retry {
		inst.stalled.Store(rerr)
	}

	r.errMu.Lock()
	r.errs = append(r.errs, rerr)
	if over := len(r.errs) - r.opts.MaxErrors; over > 0 {
		r.errs = append([]*RuntimeError(nil), r.errs[over:]...)
		r.dropped += over
	}
	r.errMu.Unlock()

	level := slog.LevelError
	if rerr.Retry {
		level = slog.LevelWarn
	}
	r.log.Log(ctx, level, "invocation failed",
		slog.String("actor", inst.id.String()),
		slog.Uint64("index", rerr.Index.Uint64()),
		slog.Bool("init", rerr.Init),
		slog.String("category", rerr.Category.String()),
		slog.Bool("retry", rerr.Retry),
		slog.Any("error", rerr.Err),
	)
	r.opts.OnError(rerr)
	return rerr
}

func (r *Runtime) reportLag(ctx context.Context, inst *instance) {
	h, ok := inst.log.(journal.Header)
	if !ok {
		return
	}
	head, err := h.Head(ctx, inst.id)
	if err != nil {
		return
	}
	cur := inst.Cursor()
	var lag uint64
	if head > cur {
		lag = uint64(head - cur)
	}
	r.metrics.ReplayLag(inst.id.String(), lag)
}
