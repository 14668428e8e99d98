package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/pactor/ports/kv"
)

const defaultBucket = "pactor_storage"

type KVConfig struct {
	Connect Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log     *slog.Logger // Log for diagnostics (optional)
	Bucket  string       // Bucket is the JetStream key-value bucket (default: pactor_storage)

	// MaxBytes bounds the bucket size. Zero means unlimited.
	MaxBytes int64
}

// KVStore implements kv.Store on a JetStream key-value bucket. Writes are
// not atomic across keys, so kv.Apply falls back to writing ops in order.
type KVStore struct {
	log   *slog.Logger
	kv    jetstream.KeyValue
	close closeFunc
}

func NewKVStore(ctx context.Context, cfg KVConfig) (*KVStore, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = -1
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		MaxBytes: maxBytes,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}

	return &KVStore{
		log:   cfg.Log.With(slog.String("bucket", cfg.Bucket)),
		kv:    bucket,
		close: closeNc,
	}, nil
}

func (s *KVStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	e, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kv.Entry{}, fmt.Errorf("%w: %s", kv.ErrNotFound, key)
		}
		return kv.Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	return kv.Entry{Data: e.Value(), Revision: e.Revision()}, nil
}

func (s *KVStore) Put(ctx context.Context, key string, data []byte) error {
	rev, err := s.kv.Put(ctx, encodeKey(key), data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.log.Debug("put", slog.String("key", key), slog.Uint64("revision", rev))
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, encodeKey(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	s.close()
	return nil
}

// encodeKey maps an arbitrary key onto the characters JetStream accepts.
// Bytes outside [-/_.a-zA-Z0-9] become =XX, and so does a leading or
// trailing dot or a dot following another dot.
func encodeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '.' && (i == 0 || i == len(key)-1 || key[i-1] == '.'):
			fmt.Fprintf(&b, "=%02X", c)
		case c == '-' || c == '/' || c == '_' || c == '.',
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}
	if b.Len() == 0 {
		return "="
	}
	return b.String()
}

var _ kv.Store = (*KVStore)(nil)
