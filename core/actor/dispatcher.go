package actor

import (
	"fmt"
)

// Router reports whether a destination kind accepts a message.
type Router interface {
	HasRoute(to Kind, msg AnyMessage) bool
}

// Dispatcher collects the messages an invocation sends. It keeps one
// message per destination; a later send to the same actor replaces the
// earlier one.
type Dispatcher struct {
	routes   Router
	messages map[AnyID]AnyMessage
}

func newDispatcher(routes Router) *Dispatcher {
	return &Dispatcher{routes: routes, messages: make(map[AnyID]AnyMessage)}
}

// Send queues msg for delivery to the actor behind to. The message kind
// is derived from msg's dynamic type. Sending a message the destination
// has no handler for fails with [ErrMethodNotFound].
func (d *Dispatcher) Send(to Addressable, msg any) error {
	data, err := encodeValue(msg)
	if err != nil {
		return err
	}
	return d.SendMessage(to, AnyMessage{Kind: messageKindOfValue(msg), Data: data})
}

// SendMessage queues an already encoded message.
func (d *Dispatcher) SendMessage(to Addressable, msg AnyMessage) error {
	id := to.Any()
	if id.IsZero() {
		return fmt.Errorf("send %s: empty destination", msg.Kind)
	}
	if d.routes != nil && !d.routes.HasRoute(id.Kind, msg) {
		return &DispatchError{Actor: id.Kind, Message: msg.Kind, Err: ErrMethodNotFound}
	}
	d.messages[id] = msg
	return nil
}

// Pending returns the number of distinct destinations queued so far.
func (d *Dispatcher) Pending() int { return len(d.messages) }
