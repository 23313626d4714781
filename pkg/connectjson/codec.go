// Package connectjson lets Connect handlers exchange plain Go structs as JSON.
package connectjson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec replaces Connect's protobuf-only JSON codec. Unknown fields are
// rejected so typos in a request fail loudly.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (Codec) Unmarshal(data []byte, message any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(message); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}

// WithCodec is the handler option installing Codec.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
