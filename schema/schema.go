package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/toolrouter/utils"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.RWMutex
)

// Schema is the JSON schema of a Go type with all references resolved.
type Schema struct {
	*jsonschema.Schema
	// Document is the root object schema with inlined definitions
	Document *jsonschema.Schema
}

// New creates a new schema from the given type
func New(t reflect.Type) (*Schema, error) {
	cacheMu.RLock()
	s, ok := cache[t]
	cacheMu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[t] = s
	cacheMu.Unlock()

	return s, nil
}

func (s *Schema) String() string {
	return utils.ToJSONIndent(s.Document)
}

func buildSchema(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, errors.New("type is required")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("unsupported type %s: must be a struct", t.String())
	}

	schema := JSONSchema(t)
	doc, err := ToDocumentSchema(schema)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build schema for %s", t.String())
	}

	return &Schema{
		Schema:   schema,
		Document: doc,
	}, nil
}

// ToDocumentSchema returns the root definition of the reflected schema
// with references to other definitions replaced by their content.
func ToDocumentSchema(tSchema *jsonschema.Schema) (*jsonschema.Schema, error) {
	refID := strings.TrimPrefix(tSchema.Ref, "#/$defs/")

	root, ok := tSchema.Definitions[refID]
	if !ok {
		return nil, errors.Errorf("definition not found: %q", refID)
	}

	res := &jsonschema.Schema{
		Version:     tSchema.Version,
		Type:        root.Type,
		Title:       root.Title,
		Description: root.Description,
		Required:    root.Required,
	}
	if root.Properties != nil {
		res.Properties = copyProperties(root.Properties)
	}

	if err := resolveRefs(res.Properties, tSchema.Definitions, map[string]bool{refID: true}); err != nil {
		return nil, err
	}
	return res, nil
}

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs jsonschema.Definitions, visiting map[string]bool) error {
	if props == nil {
		return nil
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		resolved, err := resolve(pair.Value, defs, visiting)
		if err != nil {
			return errors.WithMessagef(err, "property %q", pair.Key)
		}
		pair.Value = resolved
	}
	return nil
}

func resolve(s *jsonschema.Schema, defs jsonschema.Definitions, visiting map[string]bool) (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	if s.Ref != "" {
		name := strings.TrimPrefix(s.Ref, "#/$defs/")
		if visiting[name] {
			return nil, errors.Errorf("recursive definition: %q", name)
		}
		def, ok := defs[name]
		if !ok {
			return nil, errors.Errorf("definition not found: %q", name)
		}
		visiting[name] = true
		defer delete(visiting, name)
		s = def
	}

	// definitions are shared, resolve a copy
	cp := *s
	if cp.Properties != nil {
		cp.Properties = copyProperties(cp.Properties)
		if err := resolveRefs(cp.Properties, defs, visiting); err != nil {
			return nil, err
		}
	}
	if cp.Items != nil {
		items, err := resolve(cp.Items, defs, visiting)
		if err != nil {
			return nil, errors.WithMessage(err, "items")
		}
		cp.Items = items
	}
	return &cp, nil
}

func copyProperties(props *orderedmap.OrderedMap[string, *jsonschema.Schema]) *orderedmap.OrderedMap[string, *jsonschema.Schema] {
	res := jsonschema.NewProperties()
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		res.Set(pair.Key, pair.Value)
	}
	return res
}

// NameFromRef returns the definition name of the schema reference,
// for example `Tool@123` for `#/$defs/Tool@123`.
func (s *Schema) NameFromRef() string {
	return strings.TrimPrefix(s.Ref, "#/$defs/")
}

// JSONSchema returns the json schema of the type
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	r := new(jsonschema.Reflector)

	// Struct names may be the same in different packages,
	// the definition name carries the hash of the full package path.
	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			fullname := t.PkgPath() + "/" + t.Name()
			name = t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
		}
		return name
	}

	return r.ReflectFromType(t)
}

// Supported parameter constraints
const (
	ConstraintEnum      = "enum"
	ConstraintMinimum   = "minimum"
	ConstraintMaximum   = "maximum"
	ConstraintMinLength = "minLength"
	ConstraintMaxLength = "maxLength"
	ConstraintPattern   = "pattern"
)

// Parameters returns the object schema for the tool parameters,
// properties are listed in the declared order.
func Parameters(t *tools.Tool) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for i := range t.Parameters {
		p := &t.Parameters[i]
		props.Set(p.Name, parameterSchema(p))
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:                 "object",
		Title:                t.Name,
		Description:          t.Description,
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func parameterSchema(p *tools.Parameter) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        string(p.Type),
		Description: p.Description,
		Default:     p.Default,
	}
	if p.Type == tools.TypeArray {
		s.Items = &jsonschema.Schema{Type: string(tools.TypeString)}
	}

	for k, v := range p.Constraints {
		switch k {
		case ConstraintEnum:
			if list, ok := v.([]any); ok {
				s.Enum = list
			} else if list, ok := v.([]string); ok {
				for _, e := range list {
					s.Enum = append(s.Enum, e)
				}
			}
		case ConstraintMinimum:
			if n, ok := toNumber(v); ok {
				s.Minimum = n
			}
		case ConstraintMaximum:
			if n, ok := toNumber(v); ok {
				s.Maximum = n
			}
		case ConstraintMinLength:
			if n, ok := toLength(v); ok {
				s.MinLength = &n
			}
		case ConstraintMaxLength:
			if n, ok := toLength(v); ok {
				s.MaxLength = &n
			}
		case ConstraintPattern:
			if pattern, ok := v.(string); ok {
				s.Pattern = pattern
			}
		}
	}
	return s
}

func toNumber(v any) (json.Number, bool) {
	switch n := v.(type) {
	case int:
		return json.Number(strconv.Itoa(n)), true
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), true
	case uint64:
		return json.Number(strconv.FormatUint(n, 10)), true
	case float64:
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), true
	case json.Number:
		return n, true
	}
	return "", false
}

func toLength(v any) (uint64, bool) {
	n, ok := toNumber(v)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || f < 0 {
		return 0, false
	}
	return uint64(f), true
}
