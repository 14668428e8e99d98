package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
)

func (d *DB) Append(ctx context.Context, from, to actor.AnyID, msg actor.AnyMessage, opts ...journal.AppendOption) (journal.Index, error) {
	o := journal.NewAppendOptions(opts...)
	stream := to.String()

	var idx journal.Index
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var (
			owner string
			at    uint64
		)
		err := tx.QueryRowContext(ctx, `SELECT actor, idx FROM pactor_entry_ids WHERE entry_id = ?`, o.ID).
			Scan(&owner, &at)
		switch {
		case err == nil:
			if owner != stream {
				return fmt.Errorf("%w: %s", journal.ErrIDConflict, o.ID)
			}
			idx = journal.Index(at)
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup entry id: %w", err)
		}

		head, err := ensureStream(ctx, tx, stream)
		if err != nil {
			return err
		}
		idx = head

		sender := ""
		if !from.IsZero() {
			sender = from.String()
		}
		data := msg.Data
		if data == nil {
			data = []byte{}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pactor_log (actor, idx, entry_id, sender, kind, data, callback) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			stream, uint64(idx), o.ID, sender, string(msg.Kind), data, int64(msg.Callback),
		); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pactor_entry_ids (entry_id, actor, idx) VALUES (?, ?, ?)`,
			o.ID, stream, uint64(idx),
		); err != nil {
			return fmt.Errorf("insert entry id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pactor_streams SET head = head + 1 WHERE actor = ?`, stream); err != nil {
			return fmt.Errorf("advance head: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", to, err)
	}
	return idx, nil
}

func ensureStream(ctx context.Context, tx *sql.Tx, stream string) (journal.Index, error) {
	if _, err := tx.ExecContext(ctx, `INSERT INTO pactor_streams (actor) VALUES (?) ON CONFLICT(actor) DO NOTHING`, stream); err != nil {
		return 0, fmt.Errorf("ensure stream: %w", err)
	}
	var head uint64
	if err := tx.QueryRowContext(ctx, `SELECT head FROM pactor_streams WHERE actor = ?`, stream).Scan(&head); err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}
	return journal.Index(head), nil
}

func (d *DB) Read(ctx context.Context, actorID actor.AnyID, idx journal.Index) (*journal.Entry, error) {
	stream := actorID.String()

	var base uint64
	err := d.db.QueryRowContext(ctx, `SELECT base FROM pactor_streams WHERE actor = ?`, stream).Scan(&base)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", actorID, err)
	}
	if uint64(idx) < base {
		return nil, fmt.Errorf("%w: %s below %d", journal.ErrTrimmed, idx, base)
	}

	var (
		e        = journal.Entry{To: actorID, Index: idx}
		sender   string
		kind     string
		callback int64
	)
	err = d.db.QueryRowContext(ctx,
		`SELECT entry_id, sender, kind, data, callback FROM pactor_log WHERE actor = ? AND idx = ?`,
		stream, uint64(idx),
	).Scan(&e.ID, &sender, &kind, &e.Message.Data, &callback)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", actorID, idx, err)
	}

	if sender != "" {
		if e.From, err = actor.ParseAnyID(sender); err != nil {
			return nil, fmt.Errorf("read %s at %s: %w", actorID, idx, err)
		}
	}
	e.Message.Kind = actor.MessageKind(kind)
	e.Message.Callback = uint64(callback)
	return &e, nil
}

// Trim deletes entries below idx. Their IDs are kept for deduplication.
func (d *DB) Trim(ctx context.Context, actorID actor.AnyID, idx journal.Index) error {
	stream := actorID.String()
	return d.inTx(ctx, func(tx *sql.Tx) error {
		head, err := ensureStream(ctx, tx, stream)
		if err != nil {
			return err
		}
		idx = min(idx, head)
		if _, err := tx.ExecContext(ctx, `DELETE FROM pactor_log WHERE actor = ? AND idx < ?`, stream, uint64(idx)); err != nil {
			return fmt.Errorf("trim %s: %w", actorID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pactor_streams SET base = MAX(base, ?) WHERE actor = ?`, uint64(idx), stream); err != nil {
			return fmt.Errorf("trim %s: %w", actorID, err)
		}
		return nil
	})
}

func (d *DB) Head(ctx context.Context, actorID actor.AnyID) (journal.Index, error) {
	var head uint64
	err := d.db.QueryRowContext(ctx, `SELECT head FROM pactor_streams WHERE actor = ?`, actorID.String()).Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Zero, nil
	}
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", actorID, err)
	}
	return journal.Index(head), nil
}

var (
	_ journal.Log    = (*DB)(nil)
	_ journal.Header = (*DB)(nil)
)
