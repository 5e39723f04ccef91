package catalog

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/encoding"
	"github.com/effective-security/toolrouter/schema"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "catalog")

// Document is the catalogue file
type Document struct {
	Tools []Definition `json:"tools" yaml:"tools" toml:"tools" jsonschema:"description=Tool definitions"`
}

// Definition is the tool definition in a catalogue file
type Definition struct {
	Name        string            `json:"name" yaml:"name" toml:"name" jsonschema:"description=Unique tool name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Category    string            `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	Path        string            `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Endpoint that executes the tool"`
	Method      tools.Method      `json:"method,omitempty" yaml:"method,omitempty" toml:"method,omitempty" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=DELETE,default=GET"`
	Parameters  []tools.Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters,omitempty"`
	Examples    []string          `json:"examples,omitempty" yaml:"examples,omitempty" toml:"examples,omitempty" jsonschema:"description=Sample phrases"`
	Enabled     *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"default=true"`
	Priority    int               `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty" jsonschema:"minimum=0"`
	Timeout     int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty" jsonschema:"description=Timeout in milliseconds,minimum=0"`
}

// Tool returns the tool for the definition with defaults applied
func (d *Definition) Tool() *tools.Tool {
	t := &tools.Tool{
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Tags:        d.Tags,
		Path:        d.Path,
		Method:      tools.Method(strings.ToUpper(string(d.Method))),
		Parameters:  d.Parameters,
		Examples:    d.Examples,
		Enabled:     d.Enabled == nil || *d.Enabled,
		Priority:    d.Priority,
		Timeout:     d.Timeout,
	}
	if t.Method == "" {
		t.Method = tools.MethodGet
	}
	return t
}

// NewDefinition returns the catalogue definition of the tool
func NewDefinition(t *tools.Tool) Definition {
	enabled := t.Enabled
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Tags:        t.Tags,
		Path:        t.Path,
		Method:      t.Method,
		Parameters:  t.Parameters,
		Examples:    t.Examples,
		Enabled:     &enabled,
		Priority:    t.Priority,
		Timeout:     t.Timeout,
	}
}

// Schema returns the JSON schema of the catalogue document
func Schema() (*schema.Schema, error) {
	return schema.New(reflect.TypeOf(Document{}))
}

// Decode returns the tools from the catalogue document in the mode format
func Decode(data []byte, mode encoding.Mode) ([]*tools.Tool, error) {
	dec, err := encoding.NewTypedDecoder[Document](mode)
	if err != nil {
		return nil, err
	}
	doc, err := dec.Decode(data)
	if err != nil {
		return nil, err
	}

	list := make([]*tools.Tool, 0, len(doc.Tools))
	for i := range doc.Tools {
		list = append(list, doc.Tools[i].Tool())
	}
	return list, nil
}

// Encode returns the catalogue document with the tools in the mode format
func Encode(list []*tools.Tool, mode encoding.Mode) ([]byte, error) {
	dec, err := encoding.NewTypedDecoder[Document](mode)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Tools: make([]Definition, 0, len(list)),
	}
	for _, t := range list {
		doc.Tools = append(doc.Tools, NewDefinition(t))
	}
	return dec.Encode(doc)
}

// LoadFile returns the tools from the catalogue file,
// the format is determined by the file extension.
func LoadFile(path string) ([]*tools.Tool, error) {
	mode, err := encoding.ModeFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog")
	}
	list, err := Decode(data, mode)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load catalog %s", path)
	}
	logger.KV(xlog.DEBUG, "file", path, "tools", len(list))
	return list, nil
}

// LoadFiles returns the tools from all catalogue files in order
func LoadFiles(paths ...string) ([]*tools.Tool, error) {
	var list []*tools.Tool
	for _, path := range paths {
		l, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		list = append(list, l...)
	}
	return list, nil
}

// Registrar adds tools to a registry.
type Registrar interface {
	Register(tool *tools.Tool) error
}

// RegisterError lists the tools that failed to register.
type RegisterError struct {
	Errors []error
}

func (e *RegisterError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("failed to register %d tool(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns the registration errors
func (e *RegisterError) Unwrap() []error {
	return e.Errors
}

// Register adds each tool to the registry.
// The valid tools are registered, and *RegisterError is returned
// if any of the tools failed.
func Register(reg Registrar, list []*tools.Tool) (int, error) {
	var errs []error
	count := 0
	for _, t := range list {
		if err := reg.Register(t); err != nil {
			name := ""
			if t != nil {
				name = t.Name
			}
			logger.KV(xlog.ERROR, "tool", name, "err", err.Error())
			errs = append(errs, err)
			continue
		}
		count++
	}
	if len(errs) > 0 {
		return count, &RegisterError{Errors: errs}
	}
	return count, nil
}
