package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codewandler/pactor/ports/kv"
)

const upsertKV = `
INSERT INTO pactor_kv (key, value, revision) VALUES (?, ?, 1)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = pactor_kv.revision + 1`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *DB) Get(ctx context.Context, key string) (kv.Entry, error) {
	var e kv.Entry
	err := d.db.QueryRowContext(ctx, `SELECT value, revision FROM pactor_kv WHERE key = ?`, key).
		Scan(&e.Data, &e.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.Entry{}, fmt.Errorf("%w: %s", kv.ErrNotFound, key)
	}
	if err != nil {
		return kv.Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	return e, nil
}

func (d *DB) Put(ctx context.Context, key string, data []byte) error {
	return put(ctx, d.db, key, data)
}

func (d *DB) Delete(ctx context.Context, key string) error {
	return del(ctx, d.db, key)
}

// Batch applies ops in one transaction.
func (d *DB) Batch(ctx context.Context, ops []kv.Op) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			var err error
			if op.Delete {
				err = del(ctx, tx, op.Key)
			} else {
				err = put(ctx, tx, op.Key, op.Data)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func put(ctx context.Context, db execer, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	if _, err := db.ExecContext(ctx, upsertKV, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func del(ctx context.Context, db execer, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM pactor_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

var (
	_ kv.Store   = (*DB)(nil)
	_ kv.Batcher = (*DB)(nil)
)
