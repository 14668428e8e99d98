package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrMethodNotFound means no handler is registered for the pair of
	// actor kind and message kind.
	ErrMethodNotFound = errors.New("method not found")
	// ErrTypeMismatch means the actor or message value handed to the table
	// is not of the registered type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownCallback means a callback message carried a token that is
	// not pending for the recipient, either forged or already used.
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrDb means the backing store failed.
	ErrDb = errors.New("store failure")
	// ErrValue means a stored value could not be encoded, decoded or
	// viewed as the requested type.
	ErrValue = errors.New("value error")
	// ErrKeyNotFound means a key required to exist was absent.
	ErrKeyNotFound = errors.New("key not found")
)

// DispatchError reports a failure to route a message to a handler.
type DispatchError struct {
	Actor   Kind
	Message MessageKind
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dispatch %s init: %v", e.Actor, e.Err)
	}
	return fmt.Sprintf("dispatch %s <- %s: %v", e.Actor, e.Message, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// StorageError reports a failed storage access during a handler.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage key %q: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(key string, kind error, cause error) *StorageError {
	if cause == nil {
		return &StorageError{Key: key, Err: kind}
	}
	return &StorageError{Key: key, Err: fmt.Errorf("%w: %w", kind, cause)}
}
