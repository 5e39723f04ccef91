package toml

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Encoder uses the `toml` field tags,
// decoded integers in untyped values are int64.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	md, err := toml.Decode(string(bs), ret)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown field %q", undecoded[0].String())
	}
	return nil
}
