package json

import (
	"bytes"
	"encoding/json"
)

// Encoder encodes indented JSON and rejects unknown fields on decode.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(bs)))
	dec.DisallowUnknownFields()
	return dec.Decode(ret)
}
