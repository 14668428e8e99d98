package actor

import (
	"context"
	"log/slog"

	"github.com/codewandler/pactor/core/cache"
)

// ContextConfig carries what the runtime knows about one invocation.
type ContextConfig struct {
	// Self is the actor being invoked.
	Self AnyID
	// Sender is the actor whose message is being handled. It is zero
	// during init and for messages appended from outside the system.
	Sender AnyID
	// Seed identifies the invocation. Equal seeds yield equal callback
	// tokens, so it must be stable across replays of the same entry.
	Seed string

	Load          Loader
	Cache         cache.Cache
	Router        Router
	Logger        *slog.Logger
	OnCacheLookup func(hit bool)
}

// Context is the per-invocation handle a handler receives. It exposes the
// actor's storage and an outbox; nothing touches durable state until the
// runtime applies the resulting [Effects].
type Context struct {
	Storage    *Storage
	Dispatcher *Dispatcher

	self      AnyID
	sender    AnyID
	seed      string
	log       *slog.Logger
	callbacks uint64
	env       []byte
}

// NewContext prepares a context for one invocation. ctx bounds store reads
// made through Storage.
func NewContext(ctx context.Context, cfg ContextConfig) *Context {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Context{
		Storage:    newStorage(ctx, cfg.Load, cfg.Cache, cfg.OnCacheLookup),
		Dispatcher: newDispatcher(cfg.Router),
		self:       cfg.Self,
		sender:     cfg.Sender,
		seed:       cfg.Seed,
		log:        log.With(slog.String("actor", cfg.Self.String())),
	}
}

func (cx *Context) Self() AnyID { return cx.self }

// Sender returns the actor that sent the message being handled.
func (cx *Context) Sender() (AnyID, bool) { return cx.sender, !cx.sender.IsZero() }

func (cx *Context) Log() *slog.Logger { return cx.log }

// IntoEffects finishes the invocation. It fails if any storage access
// failed, even when the handler ignored that error.
func (cx *Context) IntoEffects() (*Effects, error) {
	storage, err := cx.Storage.effects()
	if err != nil {
		return nil, err
	}
	return newEffects(cx.Dispatcher.messages, storage), nil
}

// Discard abandons the invocation and drops everything it touched from the
// actor's cache.
func (cx *Context) Discard() {
	cx.Storage.evict()
}

// Self returns the typed identity of the invoked actor.
func Self[A any](cx *Context) ID[A] {
	id, ok := Downcast[A](cx.self)
	if !ok {
		panic("actor: context belongs to " + string(cx.self.Kind) + ", not " + string(KindOf[A]()))
	}
	return id
}

// Send is the typed form of [Dispatcher.Send].
func Send[A any, M any](cx *Context, to ID[A], msg M) error {
	am, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	return cx.Dispatcher.SendMessage(to, am)
}
