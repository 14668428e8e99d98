package journal

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/codewandler/pactor/core/actor"
)

type (
	memStream struct {
		base    Index // index of entries[0]
		entries []Entry
	}

	memLoc struct {
		to  actor.AnyID
		idx Index
	}

	// Memory is an in-process Log. It is safe for concurrent use.
	Memory struct {
		mu      sync.RWMutex
		streams map[actor.AnyID]*memStream
		ids     map[string]memLoc
	}
)

func NewMemory() *Memory {
	return &Memory{
		streams: make(map[actor.AnyID]*memStream),
		ids:     make(map[string]memLoc),
	}
}

func (m *Memory) stream(id actor.AnyID) *memStream {
	s, ok := m.streams[id]
	if !ok {
		s = &memStream{}
		m.streams[id] = s
	}
	return s
}

func (m *Memory) Append(_ context.Context, from, to actor.AnyID, msg actor.AnyMessage, opts ...AppendOption) (Index, error) {
	o := NewAppendOptions(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if loc, ok := m.ids[o.ID]; ok {
		if loc.to != to {
			return 0, fmt.Errorf("%w: %s", ErrIDConflict, o.ID)
		}
		return loc.idx, nil
	}

	s := m.stream(to)
	idx := s.base + Index(len(s.entries))
	msg.Data = bytes.Clone(msg.Data)
	s.entries = append(s.entries, Entry{ID: o.ID, From: from, To: to, Message: msg, Index: idx})
	m.ids[o.ID] = memLoc{to: to, idx: idx}
	return idx, nil
}

func (m *Memory) Read(_ context.Context, actorID actor.AnyID, idx Index) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.streams[actorID]
	if !ok {
		return nil, nil
	}
	if idx < s.base {
		return nil, fmt.Errorf("%w: %s below %s", ErrTrimmed, idx, s.base)
	}
	pos := int(idx - s.base)
	if pos >= len(s.entries) {
		return nil, nil
	}
	e := s.entries[pos]
	e.Message.Data = bytes.Clone(e.Message.Data)
	return &e, nil
}

// Trim drops entries below idx. IDs of trimmed entries stay known so a
// late retry of an old append is still recognised.
func (m *Memory) Trim(_ context.Context, actorID actor.AnyID, idx Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(actorID)
	if idx <= s.base {
		return nil
	}
	head := s.base + Index(len(s.entries))
	if idx > head {
		idx = head
	}
	s.entries = append([]Entry(nil), s.entries[idx-s.base:]...)
	s.base = idx
	return nil
}

func (m *Memory) Head(_ context.Context, actorID actor.AnyID) (Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.streams[actorID]
	if !ok {
		return Zero, nil
	}
	return s.base + Index(len(s.entries)), nil
}

var (
	_ Log    = (*Memory)(nil)
	_ Header = (*Memory)(nil)
)
