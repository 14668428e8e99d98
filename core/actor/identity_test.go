package actor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type renamed struct{}

func (*renamed) Init(*Context) error { return nil }
func (*renamed) ActorKind() Kind     { return "renamed" }

type ping struct {
	N int `json:"n"`
}

type pong struct {
	N int `json:"n"`
}

type custom struct {
	V string `json:"v"`
}

func (custom) MessageKind() MessageKind { return "custom" }

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind("github.com/codewandler/pactor/core/actor.counter"), KindOf[*counter]())
	require.Equal(t, KindOf[counter](), KindOf[*counter]())
	require.Equal(t, Kind("renamed"), KindOf[*renamed]())

	require.Equal(t, MessageKind("custom"), MessageKindOf[custom]())
	require.Equal(t, MessageKind("custom"), messageKindOfValue(custom{}))
	require.Equal(t, MessageKindOf[ping](), messageKindOfValue(ping{}))
	require.NotEqual(t, MessageKindOf[ping](), MessageKindOf[pong]())
}

func TestAnyID_StringRoundTrip(t *testing.T) {
	id := AnyID{Kind: "a.b/c.D", Instance: 42}
	require.Equal(t, "a.b/c.D#42", id.String())

	parsed, err := ParseAnyID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = ParseAnyID("nokind")
	require.Error(t, err)
	_, err = ParseAnyID("k#x")
	require.Error(t, err)
}

func TestDowncast(t *testing.T) {
	raw := AnyID{Kind: KindOf[*counter](), Instance: 3}

	id, ok := Downcast[*counter](raw)
	require.True(t, ok)
	require.Equal(t, uint32(3), id.Instance())
	require.Equal(t, raw, id.Any())

	_, ok = Downcast[*renamed](raw)
	require.False(t, ok)
}

func TestID_JSON(t *testing.T) {
	id, _ := Downcast[*counter](AnyID{Kind: KindOf[*counter](), Instance: 7})

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var back ID[*counter]
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, id, back)

	var wrong ID[*renamed]
	require.Error(t, json.Unmarshal(data, &wrong))
}

func TestMessage_EncodeDecode(t *testing.T) {
	am, err := EncodeMessage(ping{N: 4})
	require.NoError(t, err)
	require.Equal(t, MessageKindOf[ping](), am.Kind)
	require.False(t, am.IsCallback())

	m, ok := DecodeMessage[ping](am)
	require.True(t, ok)
	require.Equal(t, ping{N: 4}, m)

	_, ok = DecodeMessage[pong](am)
	require.False(t, ok, "kind mismatch must decode to absence")

	am.Data = []byte(`{"n":"four"}`)
	_, ok = DecodeMessage[ping](am)
	require.False(t, ok, "bad payload must decode to absence")
}
