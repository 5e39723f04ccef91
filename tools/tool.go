package tools

import (
	"reflect"
	"slices"
)

// Method is the HTTP method an executor uses to invoke a tool.
type Method string

// Supported methods
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParameterType is the declared type of a tool parameter.
type ParameterType string

// Supported parameter types
const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
)

// Parameter describes a single tool argument.
type Parameter struct {
	Name        string         `json:"name" yaml:"name" toml:"name" validate:"required" jsonschema:"title=name,description=Parameter name."`
	Type        ParameterType  `json:"type" yaml:"type" toml:"type" validate:"oneof=string number boolean object array" jsonschema:"enum=string,enum=number,enum=boolean,enum=object,enum=array"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Default     any            `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

// Tool is a named, parameterized action that can be suggested for a query
// and later invoked by an external executor.
type Tool struct {
	// Name is the unique key of the tool in a registry.
	Name        string   `json:"name" yaml:"name" toml:"name" validate:"required,identifier"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Category    string   `json:"category" yaml:"category" toml:"category"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	// Path and Method describe how an executor invokes the tool.
	Path       string      `json:"path" yaml:"path" toml:"path"`
	Method     Method      `json:"method" yaml:"method" toml:"method" validate:"oneof=GET POST PUT DELETE"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters,omitempty" validate:"dive"`
	// Examples are sample phrases that should suggest this tool.
	Examples []string `json:"examples,omitempty" yaml:"examples,omitempty" toml:"examples,omitempty"`
	Enabled  bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	// Priority is used for ranking, higher is preferred.
	Priority int `json:"priority" yaml:"priority" toml:"priority" validate:"min=0"`
	// Timeout in milliseconds, consumed only by the executor.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty" validate:"min=0"`
}

// Clone returns a deep copy of the tool with duplicate tags removed.
func (t *Tool) Clone() *Tool {
	c := *t
	c.Tags = UniqueTags(t.Tags)
	c.Examples = slices.Clone(t.Examples)
	if t.Parameters != nil {
		c.Parameters = make([]Parameter, len(t.Parameters))
		for i, p := range t.Parameters {
			p.Default = CloneValue(p.Default)
			p.Constraints = CloneValue(p.Constraints)
			c.Parameters[i] = p
		}
	}
	return &c
}

// HasTag returns true if the tool carries the tag.
func (t *Tool) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// RequiredParameters returns the names of the required parameters.
func (t *Tool) RequiredParameters() []string {
	var names []string
	for _, p := range t.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// UniqueTags returns tags without empty values and duplicates, keeping the first occurrence.
func UniqueTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	res := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		res = append(res, tag)
	}
	return res
}

// CloneValue returns a deep copy of the maps, slices, arrays and pointers in v.
// Other values, including structs, are copied as is.
// v must not contain reference cycles.
func CloneValue[T any](v T) T {
	var res T
	reflect.ValueOf(&res).Elem().Set(cloneValue(reflect.ValueOf(&v).Elem()))
	return res
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	default:
		return v
	}
}
