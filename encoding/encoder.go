package encoding

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/toolrouter/encoding/json"
	tomlenc "github.com/effective-security/toolrouter/encoding/toml"
	yamlenc "github.com/effective-security/toolrouter/encoding/yaml"
)

// Encoder serializes documents in one of the supported formats.
type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
}

type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
)

// ModeDefault is the default mode for the encoder.
var ModeDefault = ModeYAML

// PredefinedEncoder returns the encoder for the mode
func PredefinedEncoder(mode Mode) (Encoder, error) {
	switch strings.ToLower(mode) {
	case ModeJSON:
		return jsonenc.NewEncoder(), nil
	case ModeYAML, "yml":
		return yamlenc.NewEncoder(), nil
	case ModeTOML:
		return tomlenc.NewEncoder(), nil
	default:
		return nil, errors.Errorf("no predefined encoder: %q", mode)
	}
}

// ModeFromPath returns the mode by the file extension
func ModeFromPath(path string) (Mode, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "json":
		return ModeJSON, nil
	case "yaml", "yml":
		return ModeYAML, nil
	case "toml":
		return ModeTOML, nil
	default:
		return "", errors.Errorf("unsupported file format: %q", path)
	}
}

var (
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)
)
