package encoding

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// TypedDecoder decodes documents into T.
type TypedDecoder[T any] struct {
	enc  Encoder
	mode Mode
	name string
}

// NewTypedDecoder creates a decoder of T for the mode.
func NewTypedDecoder[T any](mode Mode) (*TypedDecoder[T], error) {
	enc, err := PredefinedEncoder(mode)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder")
	}

	var target T
	return &TypedDecoder[T]{
		enc:  enc,
		mode: mode,
		name: fmt.Sprintf("%T %s decoder", target, mode),
	}, nil
}

// Decode decodes the document.
func (p *TypedDecoder[T]) Decode(data []byte) (*T, error) {
	var target T
	if err := p.enc.Unmarshal(data, &target); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", p.mode)
	}
	return &target, nil
}

// Encode encodes the document.
func (p *TypedDecoder[T]) Encode(v *T) ([]byte, error) {
	data, err := p.enc.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", p.mode)
	}
	return data, nil
}

// Type returns the string type key uniquely identifying this decoder
func (p *TypedDecoder[T]) Type() string {
	return p.name
}
