package actor

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Actor is implemented by every actor type. Init runs once, the first time
// the actor is started, and may set up storage and send messages.
type Actor interface {
	Init(cx *Context) error
}

type (
	initFunc    func(a any, cx *Context) error
	handlerFunc func(a any, cx *Context, msg AnyMessage) error

	tableEntry struct {
		init      initFunc
		handlers  map[MessageKind]handlerFunc
		callbacks map[MessageKind]handlerFunc
	}
)

// Table maps actor kinds and message kinds to type-erased handlers. It is
// filled once at startup and read concurrently afterwards.
type Table struct {
	mu     sync.RWMutex
	actors map[Kind]*tableEntry
}

func NewTable() *Table {
	return &Table{actors: make(map[Kind]*tableEntry)}
}

// Registrar is anything that owns a dispatch table.
type Registrar interface {
	DispatchTable() *Table
}

func (t *Table) DispatchTable() *Table { return t }

// RegisterActor registers actor type A and its Init. Registering the same
// kind twice panics.
func RegisterActor[A Actor](r Registrar) {
	t := r.DispatchTable()
	kind := KindOf[A]()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.actors[kind]; ok {
		panic(fmt.Sprintf("actor: kind %s registered twice", kind))
	}
	t.actors[kind] = &tableEntry{
		init: func(a any, cx *Context) error {
			typed, ok := a.(A)
			if !ok {
				return &DispatchError{Actor: kind, Err: fmt.Errorf("%w: have %T", ErrTypeMismatch, a)}
			}
			return typed.Init(cx)
		},
		handlers:  make(map[MessageKind]handlerFunc),
		callbacks: make(map[MessageKind]handlerFunc),
	}
}

// RegisterHandler registers fn as A's handler for messages of type M. A
// must be registered first.
func RegisterHandler[A Actor, M any](r Registrar, fn func(A, *Context, M) error) {
	kind, mk := KindOf[A](), MessageKindOf[M]()
	r.DispatchTable().addHandler(kind, mk, false, func(a any, cx *Context, msg AnyMessage) error {
		typed, m, err := decodePair[A, M](kind, a, msg)
		if err != nil {
			return err
		}
		return fn(typed, cx, m)
	})
}

// RegisterCallback registers fn as A's handler for callbacks delivering an
// M. Each token created with [NewCallback] is accepted exactly once.
func RegisterCallback[A Actor, M any](r Registrar, fn func(A, *Context, CallbackID[M], M) error) {
	kind, mk := KindOf[A](), MessageKindOf[M]()
	r.DispatchTable().addHandler(kind, mk, true, func(a any, cx *Context, msg AnyMessage) error {
		typed, m, err := decodePair[A, M](kind, a, msg)
		if err != nil {
			return err
		}
		if err := cx.consumeCallback(msg.Callback); err != nil {
			if errors.Is(err, ErrUnknownCallback) {
				return &DispatchError{Actor: kind, Message: mk, Err: err}
			}
			return err
		}
		return fn(typed, cx, CallbackID[M]{Owner: cx.self, ID: msg.Callback}, m)
	})
}

func decodePair[A any, M any](kind Kind, a any, msg AnyMessage) (A, M, error) {
	var (
		zeroA A
		zeroM M
	)
	typed, ok := a.(A)
	if !ok {
		return zeroA, zeroM, &DispatchError{Actor: kind, Message: msg.Kind, Err: fmt.Errorf("%w: have %T", ErrTypeMismatch, a)}
	}
	m, ok := DecodeMessage[M](msg)
	if !ok {
		return zeroA, zeroM, &DispatchError{Actor: kind, Message: msg.Kind, Err: fmt.Errorf("%w: payload is not %s", ErrTypeMismatch, MessageKindOf[M]())}
	}
	return typed, m, nil
}

func (t *Table) addHandler(kind Kind, mk MessageKind, callback bool, h handlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.actors[kind]
	if !ok {
		panic(fmt.Sprintf("actor: handler for %s registered before actor", kind))
	}
	target := e.handlers
	if callback {
		target = e.callbacks
	}
	if _, ok := target[mk]; ok {
		panic(fmt.Sprintf("actor: handler %s <- %s registered twice", kind, mk))
	}
	target[mk] = h
}

func (t *Table) IsRegistered(kind Kind) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.actors[kind]
	return ok
}

// Kinds returns the registered actor kinds in sorted order.
func (t *Table) Kinds() []Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.actors))
}

// HasRoute reports whether actors of kind to accept msg.
func (t *Table) HasRoute(to Kind, msg AnyMessage) bool {
	_, err := t.lookup(to, msg)
	return err == nil
}

func (t *Table) lookup(kind Kind, msg AnyMessage) (handlerFunc, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.actors[kind]
	if !ok {
		return nil, &DispatchError{Actor: kind, Message: msg.Kind, Err: ErrMethodNotFound}
	}
	handlers := e.handlers
	if msg.IsCallback() {
		handlers = e.callbacks
	}
	h, ok := handlers[msg.Kind]
	if !ok {
		return nil, &DispatchError{Actor: kind, Message: msg.Kind, Err: ErrMethodNotFound}
	}
	return h, nil
}

// DispatchInit runs the Init of actor a, registered as kind, and returns
// the resulting effects.
func (t *Table) DispatchInit(kind Kind, a any, cx *Context) (*Effects, error) {
	t.mu.RLock()
	e, ok := t.actors[kind]
	t.mu.RUnlock()
	if !ok {
		return nil, &DispatchError{Actor: kind, Err: ErrMethodNotFound}
	}
	if err := e.init(a, cx); err != nil {
		return nil, err
	}
	return cx.IntoEffects()
}

// DispatchHandler runs the handler of actor a, registered as kind, for msg
// and returns the resulting effects.
func (t *Table) DispatchHandler(kind Kind, a any, cx *Context, msg AnyMessage) (*Effects, error) {
	h, err := t.lookup(kind, msg)
	if err != nil {
		return nil, err
	}
	if err := h(a, cx, msg); err != nil {
		return nil, err
	}
	return cx.IntoEffects()
}

var _ Router = (*Table)(nil)
