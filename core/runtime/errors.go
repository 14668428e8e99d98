package runtime

import (
	"errors"
	"fmt"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/journal"
)

var (
	ErrUnknownActor = errors.New("unknown actor")
	ErrPanic        = errors.New("handler panicked")
)

// Category groups dispatch failures by what went wrong.
type Category uint8

const (
	// CategoryDispatch covers routing failures: no handler, wrong types or
	// an unknown callback token.
	CategoryDispatch Category = iota + 1
	// CategoryStorage covers failed storage access inside a handler and
	// failed writes of the resulting effects.
	CategoryStorage
	// CategoryLog covers failed reads from or appends to a log.
	CategoryLog
	// CategoryOther covers errors returned by handlers and panics.
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryDispatch:
		return "dispatch"
	case CategoryStorage:
		return "storage"
	case CategoryLog:
		return "log"
	case CategoryOther:
		return "other"
	}
	return "unknown"
}

// RuntimeError reports one failed invocation. Retryable failures are tried
// again at the same index. Any other failure stalls the actor at Index
// until the runtime is restarted.
type RuntimeError struct {
	Actor    actor.AnyID
	Index    journal.Index
	Init     bool
	Category Category
	Retry    bool
	Err      error
}

func (e *RuntimeError) Error() string {
	at := "index " + e.Index.String()
	if e.Init {
		at = "init"
	}
	return fmt.Sprintf("actor %s at %s (%s): %v", e.Actor, at, e.Category, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func classify(err error) Category {
	var (
		de *actor.DispatchError
		se *actor.StorageError
	)
	switch {
	case errors.As(err, &de):
		return CategoryDispatch
	case errors.As(err, &se):
		return CategoryStorage
	}
	return CategoryOther
}
