package actor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/codewandler/pactor/core/reflector"
)

// Kind names an actor type. It is stable across restarts and is what the
// dispatch table and persisted identities refer to.
type Kind string

// Kinder lets an actor type override its derived Kind.
type Kinder interface {
	ActorKind() Kind
}

// KindOf returns the Kind of actor type A. Types implementing [Kinder]
// choose their own name, all others are named after their Go type.
func KindOf[A any]() Kind {
	if k, ok := overrideOf[A, Kinder](); ok {
		return k.ActorKind()
	}
	return Kind(reflector.TypeInfoFor[A]().Name)
}

// overrideOf returns a usable value of T as I. Pointer types are backed by
// a fresh element so value receivers never see a nil pointer.
func overrideOf[T any, I any]() (I, bool) {
	t := reflect.TypeFor[T]()
	var v reflect.Value
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem())
	} else {
		v = reflect.New(t).Elem()
	}
	i, ok := v.Interface().(I)
	return i, ok
}

// AnyID identifies an actor instance without carrying its static type.
// The zero value identifies nobody.
type AnyID struct {
	Kind     Kind   `json:"kind"`
	Instance uint32 `json:"instance"`
}

func (id AnyID) IsZero() bool { return id.Instance == 0 && id.Kind == "" }

// Any returns id itself. It lets AnyID and ID[A] be used interchangeably
// wherever an [Addressable] is accepted.
func (id AnyID) Any() AnyID { return id }

func (id AnyID) String() string {
	return string(id.Kind) + "#" + strconv.FormatUint(uint64(id.Instance), 10)
}

// ParseAnyID parses the output of [AnyID.String].
func ParseAnyID(s string) (AnyID, error) {
	i := strings.LastIndexByte(s, '#')
	if i <= 0 {
		return AnyID{}, fmt.Errorf("invalid actor id %q", s)
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return AnyID{}, fmt.Errorf("invalid actor id %q: %w", s, err)
	}
	return AnyID{Kind: Kind(s[:i]), Instance: uint32(n)}, nil
}

// Compare orders ids by kind, then instance.
func (id AnyID) Compare(other AnyID) int {
	if c := strings.Compare(string(id.Kind), string(other.Kind)); c != 0 {
		return c
	}
	switch {
	case id.Instance < other.Instance:
		return -1
	case id.Instance > other.Instance:
		return 1
	}
	return 0
}

// Addressable is anything that resolves to an actor identity.
type Addressable interface {
	Any() AnyID
}

// ID is the typed identity of an actor instance of type A. IDs are handed
// out by the runtime; user code obtains them from AddActor, [Self] or
// [Downcast].
type ID[A any] struct {
	instance uint32
}

func (id ID[A]) Kind() Kind       { return KindOf[A]() }
func (id ID[A]) Instance() uint32 { return id.instance }
func (id ID[A]) IsZero() bool     { return id.instance == 0 }
func (id ID[A]) Any() AnyID       { return AnyID{Kind: KindOf[A](), Instance: id.instance} }
func (id ID[A]) String() string   { return id.Any().String() }

func (id ID[A]) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Any())
}

// UnmarshalJSON accepts the encoding of an AnyID and rejects it when its
// kind is not A's.
func (id *ID[A]) UnmarshalJSON(data []byte) error {
	var a AnyID
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	typed, ok := Downcast[A](a)
	if !ok {
		return fmt.Errorf("actor id %s is not of kind %s", a, KindOf[A]())
	}
	*id = typed
	return nil
}

// Downcast converts an AnyID to ID[A] if the kinds match.
func Downcast[A any](id AnyID) (ID[A], bool) {
	if id.Kind != KindOf[A]() {
		return ID[A]{}, false
	}
	return ID[A]{instance: id.Instance}, true
}

var (
	_ Addressable = AnyID{}
	_ Addressable = ID[struct{}]{}
)
