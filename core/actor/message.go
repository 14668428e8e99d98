package actor

import (
	"fmt"

	"github.com/codewandler/pactor/core/reflector"
	"github.com/codewandler/pactor/internal/codec"
)

// MessageKind names a message type.
type MessageKind string

// MessageKinder lets a message type override its derived MessageKind.
type MessageKinder interface {
	MessageKind() MessageKind
}

// MessageKindOf returns the MessageKind of message type M.
func MessageKindOf[M any]() MessageKind {
	if k, ok := overrideOf[M, MessageKinder](); ok {
		return k.MessageKind()
	}
	return MessageKind(reflector.TypeInfoFor[M]().Name)
}

// AnyMessage is the type-erased wire form of a message. Data holds the
// encoded payload. A non-zero Callback marks the message as the invocation
// of a callback previously registered by the recipient.
type AnyMessage struct {
	Kind     MessageKind `json:"kind"`
	Data     []byte      `json:"data"`
	Callback uint64      `json:"callback,omitempty"`
}

func (m AnyMessage) IsCallback() bool { return m.Callback != 0 }

// EncodeMessage converts a typed message into its wire form.
func EncodeMessage[M any](msg M) (AnyMessage, error) {
	data, err := codec.Default.Marshal(msg)
	if err != nil {
		return AnyMessage{}, err
	}
	return AnyMessage{Kind: MessageKindOf[M](), Data: data}, nil
}

// DecodeMessage converts a wire message back into M. It reports false when
// the kind is not M's or the payload does not decode as M.
func DecodeMessage[M any](msg AnyMessage) (M, bool) {
	var out M
	if msg.Kind != MessageKindOf[M]() {
		return out, false
	}
	if err := codec.Default.Unmarshal(msg.Data, &out); err != nil {
		var zero M
		return zero, false
	}
	return out, true
}

func messageKindOfValue(msg any) MessageKind {
	if k, ok := msg.(MessageKinder); ok {
		return k.MessageKind()
	}
	return MessageKind(reflector.TypeInfoOf(msg).Name)
}

func encodeValue(msg any) ([]byte, error) {
	data, err := codec.Default.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", messageKindOfValue(msg), err)
	}
	return data, nil
}
