package actor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/codewandler/pactor/internal/codec"
	"github.com/codewandler/pactor/internal/digest"
)

// CallbackID is a single-use token that lets another actor deliver an M to
// the callback registered by Owner. Tokens are plain data and travel
// inside messages.
type CallbackID[M any] struct {
	Owner AnyID  `json:"owner"`
	ID    uint64 `json:"id"`
}

func (c CallbackID[M]) IsZero() bool { return c.ID == 0 }

// callbackMarker records a pending callback. Env is the environment given
// at registration, encoded.
type callbackMarker struct {
	Env json.RawMessage `json:"env,omitempty"`
}

func callbackKey(owner AnyID, id uint64) string {
	return ReservedPrefix + "cb/" + string(owner.Kind) + "/" +
		strconv.FormatUint(uint64(owner.Instance), 10) + "/" +
		strconv.FormatUint(id, 16)
}

// NewCallback registers a callback expecting an M and returns its token.
// The owner's RegisterCallback handler for M runs when the token is used.
func NewCallback[M any](cx *Context) CallbackID[M] {
	return newCallback[M](cx, nil)
}

// NewCallbackWithEnv is NewCallback with an environment that the callback
// handler reads back through [CallbackEnv].
func NewCallbackWithEnv[M any, E any](cx *Context, env E) (CallbackID[M], error) {
	data, err := codec.Default.Marshal(env)
	if err != nil {
		return CallbackID[M]{}, fmt.Errorf("encode callback env: %w", err)
	}
	return newCallback[M](cx, data), nil
}

func newCallback[M any](cx *Context, env []byte) CallbackID[M] {
	cx.callbacks++
	id := digest.New(8).
		String(cx.seed).
		String(cx.self.String()).
		String(string(MessageKindOf[M]())).
		Uint64(cx.callbacks).
		Sum64()
	if id == 0 {
		id = 1
	}
	Put(cx.Storage, callbackKey(cx.self, id), callbackMarker{Env: env})
	return CallbackID[M]{Owner: cx.self, ID: id}
}

// Call delivers msg to the callback behind cb. Like any send it replaces an
// earlier message queued for the same owner.
func Call[M any](cx *Context, cb CallbackID[M], msg M) error {
	if cb.IsZero() {
		return fmt.Errorf("call %s: %w", MessageKindOf[M](), ErrUnknownCallback)
	}
	am, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	am.Callback = cb.ID
	return cx.Dispatcher.SendMessage(cb.Owner, am)
}

// CallbackEnv decodes the environment of the callback being handled. It
// reports false outside a callback or when none was given.
func CallbackEnv[E any](cx *Context) (E, bool, error) {
	var out E
	if len(cx.env) == 0 {
		return out, false, nil
	}
	if err := codec.Default.Unmarshal(cx.env, &out); err != nil {
		return out, false, fmt.Errorf("decode callback env: %w", err)
	}
	return out, true, nil
}

// consumeCallback checks that id is pending for this actor and retires it.
func (cx *Context) consumeCallback(id uint64) error {
	key := callbackKey(cx.self, id)
	marker, ok, err := Get[callbackMarker](cx.Storage, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownCallback
	}
	cx.Storage.Remove(key)
	cx.env = marker.Env
	return nil
}
