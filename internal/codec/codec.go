// Package codec holds the value codec used for messages and stored values.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrTrailingData = errors.New("trailing data after value")

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes compactly and decodes strictly: unknown fields and
// trailing data are rejected so that bytes of one type never silently
// decode into another.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("codec: %w", ErrTrailingData)
	}
	return nil
}

// Default is the codec used when none is configured.
var Default Codec = JSONCodec{}

var _ Codec = JSONCodec{}
