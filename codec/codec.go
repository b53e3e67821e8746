// Package codec centralizes document encoding.
//
// Codec selection is a breaking-change boundary for the value encoding, but
// compression is not: every stored payload records its compression in a
// leading frame byte, so readers decode blobs written with any setting.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
// Configuration files select codecs this way.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Envelope pairs a Codec with a Compression for stored payloads.
type Envelope struct {
	Codec       Codec
	Compression Compression
}

// Encode marshals v and frames the result.
func (e Envelope) Encode(v any) ([]byte, error) {
	c := e.Codec
	if c == nil {
		c = Default
	}
	raw, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	return Compress(e.Compression, raw)
}

// Decode unframes data, whatever compression it was written with, and
// unmarshals it into v.
func (e Envelope) Decode(data []byte, v any) error {
	c := e.Codec
	if c == nil {
		c = Default
	}
	raw, err := Decompress(data)
	if err != nil {
		return err
	}
	if err := c.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	return nil
}
