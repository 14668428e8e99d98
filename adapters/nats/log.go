package nats

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/core/perkey"
	"github.com/codewandler/pactor/internal/codec"
)

const (
	defaultSubjectPrefix = "pactor.log"
	defaultStreamName    = "PACTOR_LOG"
	defaultDuplicates    = 10 * time.Minute

	// appends racing for the same index retry this many times
	maxAppendAttempts = 8
)

type LogConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix is the prefix of all log subjects (default: pactor.log)
	StreamName    string       // StreamName is the JetStream stream holding the logs (default: PACTOR_LOG)

	// Duplicates is the window in which appends with the same entry ID are
	// detected (default: 10m). Replays after a crash must happen within it.
	Duplicates time.Duration

	// MaxAge bounds how long entries are kept. Zero keeps them until trimmed.
	MaxAge time.Duration
}

// Log implements journal.Log on a JetStream stream.
//
// Every entry is its own subject <prefix>.e.<actor>.<index>, so reading an
// entry is a direct last-message lookup and a publish that expects the
// subject to be empty claims the index. The trim base of an actor lives on
// <prefix>.b.<actor>.
type Log struct {
	nc            *natsgo.Conn
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	appends       *perkey.Scheduler[string]
	close         closeFunc
}

func NewLog(ctx context.Context, cfg LogConfig) (*Log, error) {
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

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	duplicates := cfg.Duplicates
	if duplicates == 0 {
		duplicates = defaultDuplicates
	}

	log = log.With(
		slog.String("log", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subjectPrefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	stream, streamInfo, err := ensureStream(ctx, js, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     cfg.MaxAge,
		MaxBytes:   -1,
		MaxMsgs:    -1,
		Duplicates: duplicates,
		FirstSeq:   1,
	})
	if err != nil {
		closeNc()
		return nil, err
	}

	log.Debug("ensured", slog.Any("stream", streamInfo.Config.Name))

	return &Log{
		nc:            nc,
		js:            js,
		stream:        stream,
		log:           log,
		subjectPrefix: subjectPrefix,
		appends:       perkey.New[string](),
		close:         closeNc,
	}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) (s jetstream.Stream, si *jetstream.StreamInfo, err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err = js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	si, err = s.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, si, nil
}

func (l *Log) Close() error {
	l.appends.Close()
	l.js.CleanupPublisher()
	l.close()
	l.log.Debug("closed log")
	return nil
}

func (l *Log) Append(ctx context.Context, from, to actor.AnyID, msg actor.AnyMessage, opts ...journal.AppendOption) (journal.Index, error) {
	o := journal.NewAppendOptions(opts...)
	token := actorToken(to)

	var idx journal.Index
	err := l.appends.DoContext(ctx, token, func() error {
		for attempt := 0; attempt < maxAppendAttempts; attempt++ {
			head, err := l.head(ctx, token)
			if err != nil {
				return err
			}

			data, err := codec.Default.Marshal(journal.Entry{
				ID:      o.ID,
				From:    from,
				To:      to,
				Message: msg,
				Index:   head,
			})
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}

			ack, err := l.js.Publish(ctx, l.entrySubject(token, head), data,
				jetstream.WithMsgID(o.ID),
				jetstream.WithExpectLastSequencePerSubject(0),
			)
			if isWrongLastSequence(err) {
				l.log.Debug("index taken, retrying", slog.String("actor", to.String()), slog.Uint64("index", head.Uint64()))
				continue
			}
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}

			if !ack.Duplicate {
				idx = head
				return nil
			}
			idx, err = l.duplicateIndex(ctx, token, o.ID, ack.Sequence)
			return err
		}
		return fmt.Errorf("no free index after %d attempts", maxAppendAttempts)
	})
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", to, err)
	}
	return idx, nil
}

// duplicateIndex resolves the index of the earlier entry a duplicate
// publish was folded into.
func (l *Log) duplicateIndex(ctx context.Context, token, id string, seq uint64) (journal.Index, error) {
	m, err := l.stream.GetMsg(ctx, seq)
	if err != nil {
		return 0, fmt.Errorf("load duplicate %s: %w", id, err)
	}
	owner, idx, ok := l.parseEntrySubject(m.Subject)
	if !ok || owner != token {
		return 0, fmt.Errorf("%w: %s", journal.ErrIDConflict, id)
	}
	return idx, nil
}

func (l *Log) Read(ctx context.Context, actorID actor.AnyID, idx journal.Index) (*journal.Entry, error) {
	token := actorToken(actorID)

	m, err := l.stream.GetLastMsgForSubject(ctx, l.entrySubject(token, idx))
	if errors.Is(err, jetstream.ErrMsgNotFound) {
		base, err := l.base(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("read %s at %s: %w", actorID, idx, err)
		}
		if idx < base {
			return nil, fmt.Errorf("%w: %s below %s", journal.ErrTrimmed, idx, base)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", actorID, idx, err)
	}

	var e journal.Entry
	if err := codec.Default.Unmarshal(m.Data, &e); err != nil {
		return nil, fmt.Errorf("decode %s at %s: %w", actorID, idx, err)
	}
	e.Index = idx
	return &e, nil
}

// Trim records the new base first and purges afterwards, so a reader never
// mistakes a purged entry for the end of the log.
func (l *Log) Trim(ctx context.Context, actorID actor.AnyID, idx journal.Index) error {
	token := actorToken(actorID)
	return l.appends.DoContext(ctx, token, func() error {
		head, err := l.head(ctx, token)
		if err != nil {
			return err
		}
		base, err := l.base(ctx, token)
		if err != nil {
			return err
		}
		idx = min(idx, head)
		if idx <= base {
			return nil
		}

		baseSubject := l.baseSubject(token)
		if _, err := l.js.Publish(ctx, baseSubject, []byte(strconv.FormatUint(idx.Uint64(), 10))); err != nil {
			return fmt.Errorf("trim %s: %w", actorID, err)
		}
		if err := l.stream.Purge(ctx, jetstream.WithPurgeSubject(baseSubject), jetstream.WithPurgeKeep(1)); err != nil {
			return fmt.Errorf("trim %s: %w", actorID, err)
		}

		filter := l.entryFilter(token)
		purge := []jetstream.StreamPurgeOpt{jetstream.WithPurgeSubject(filter)}
		if idx < head {
			first, err := l.stream.GetLastMsgForSubject(ctx, l.entrySubject(token, idx))
			if err != nil {
				return fmt.Errorf("trim %s: locate %s: %w", actorID, idx, err)
			}
			purge = append(purge, jetstream.WithPurgeSequence(first.Sequence))
		}
		if err := l.stream.Purge(ctx, purge...); err != nil {
			return fmt.Errorf("trim %s: %w", actorID, err)
		}

		l.log.Debug("trimmed", slog.String("actor", actorID.String()), slog.Uint64("base", idx.Uint64()))
		return nil
	})
}

func (l *Log) Head(ctx context.Context, actorID actor.AnyID) (journal.Index, error) {
	return l.head(ctx, actorToken(actorID))
}

func (l *Log) head(ctx context.Context, token string) (journal.Index, error) {
	m, err := l.stream.GetLastMsgForSubject(ctx, l.entryFilter(token))
	switch {
	case errors.Is(err, jetstream.ErrMsgNotFound):
		return l.base(ctx, token)
	case err != nil:
		return 0, fmt.Errorf("head: %w", err)
	}
	_, idx, ok := l.parseEntrySubject(m.Subject)
	if !ok {
		return 0, fmt.Errorf("head: unexpected subject %q", m.Subject)
	}
	return idx.Next(), nil
}

func (l *Log) base(ctx context.Context, token string) (journal.Index, error) {
	m, err := l.stream.GetLastMsgForSubject(ctx, l.baseSubject(token))
	switch {
	case errors.Is(err, jetstream.ErrMsgNotFound):
		return journal.Zero, nil
	case err != nil:
		return 0, fmt.Errorf("base: %w", err)
	}
	n, err := strconv.ParseUint(string(m.Data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("base: %w", err)
	}
	return journal.Index(n), nil
}

func (l *Log) entrySubject(token string, idx journal.Index) string {
	return l.subjectPrefix + ".e." + token + "." + strconv.FormatUint(idx.Uint64(), 10)
}

// entryFilter matches every entry of one actor.
func (l *Log) entryFilter(token string) string {
	return l.subjectPrefix + ".e." + token + ".*"
}

func (l *Log) baseSubject(token string) string {
	return l.subjectPrefix + ".b." + token
}

func (l *Log) parseEntrySubject(subject string) (token string, idx journal.Index, ok bool) {
	rest, ok := strings.CutPrefix(subject, l.subjectPrefix+".e.")
	if !ok {
		return "", 0, false
	}
	token, n, ok := strings.Cut(rest, ".")
	if !ok {
		return "", 0, false
	}
	i, err := strconv.ParseUint(n, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return token, journal.Index(i), true
}

// actorToken turns an actor ID into a single subject token. Kind names
// contain dots and slashes which NATS treats specially.
func actorToken(id actor.AnyID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

var (
	_ journal.Log    = (*Log)(nil)
	_ journal.Header = (*Log)(nil)
)
