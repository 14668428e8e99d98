package nats

import (
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/core/journal/journaltest"
)

func TestLog(t *testing.T) {
	connectNats := ReuseConnection(NewTestContainer(t))
	newLog := func(t *testing.T) *Log {
		// a fresh prefix and stream per test keeps the actors apart
		suffix := gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz", 8)
		l, err := NewLog(t.Context(), LogConfig{
			Connect:       connectNats,
			SubjectPrefix: "test." + suffix,
			StreamName:    "LOG_" + suffix,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = l.Close() })
		return l
	}

	journaltest.Run(t, func(t *testing.T) journal.Log { return newLog(t) })

	t.Run("stream info", func(t *testing.T) {
		l := newLog(t)
		si, err := l.stream.Info(t.Context())
		require.NoError(t, err)
		require.Equal(t, []string{l.subjectPrefix + ".>"}, si.Config.Subjects)
		require.Equal(t, defaultDuplicates, si.Config.Duplicates)
	})

	t.Run("subjects", func(t *testing.T) {
		l := newLog(t)
		id := actor.AnyID{Kind: "github.com/acme/app.Sender", Instance: 7}
		token := actorToken(id)
		require.NotContains(t, token, ".")

		owner, idx, ok := l.parseEntrySubject(l.entrySubject(token, 12))
		require.True(t, ok)
		require.Equal(t, token, owner)
		require.Equal(t, journal.Index(12), idx)

		_, _, ok = l.parseEntrySubject(l.baseSubject(token))
		require.False(t, ok)
	})
}
