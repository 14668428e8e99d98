// Package backend opens the store and log pair the commands run on.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/codewandler/pactor/adapters/nats"
	"github.com/codewandler/pactor/adapters/sqlite"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/ports/kv"
)

const (
	Memory = "memory"
	SQLite = "sqlite"
	NATS   = "nats"
)

// Config selects and configures a backend. It is meant to be embedded in a
// command's env config.
type Config struct {
	Backend    string `env:"BACKEND" envDefault:"memory"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"pactor.db"`
	NatsURL    string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NatsBucket string `env:"NATS_BUCKET" envDefault:"pactor_storage"`
	NatsStream string `env:"NATS_STREAM" envDefault:"PACTOR_LOG"`
}

type Backend struct {
	Store  kv.Store
	Log    journal.Log
	closer []io.Closer
}

func (b *Backend) Close() {
	for _, c := range b.closer {
		_ = c.Close()
	}
}

func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case Memory, "":
		return &Backend{Store: kv.NewMemStore(), Log: journal.NewMemory()}, nil

	case SQLite:
		db, err := sqlite.Open(cfg.SQLitePath, sqlite.Options{Logger: log})
		if err != nil {
			return nil, err
		}
		return &Backend{Store: db, Log: db, closer: []io.Closer{db}}, nil

	case NATS:
		connect := nats.ReuseConnection(nats.ConnectURL(cfg.NatsURL))
		store, err := nats.NewKVStore(ctx, nats.KVConfig{
			Connect: connect,
			Log:     log,
			Bucket:  cfg.NatsBucket,
		})
		if err != nil {
			return nil, err
		}
		l, err := nats.NewLog(ctx, nats.LogConfig{
			Connect:    connect,
			Log:        log,
			StreamName: cfg.NatsStream,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return &Backend{Store: store, Log: l, closer: []io.Closer{l, store}}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
