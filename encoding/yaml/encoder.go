package yaml

import (
	"sigs.k8s.io/yaml"
)

// Encoder uses the `json` field tags,
// decoded numbers in untyped values are float64 as in JSON.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return yaml.UnmarshalStrict(bs, ret)
}
