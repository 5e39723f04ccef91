package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/toolrouter/schema"
	"github.com/effective-security/toolrouter/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Tools []tools.Tool `json:"tools" jsonschema:"description=Tool definitions"`
}

func Test_New(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(document{}))
	require.NoError(t, err)
	require.NotNil(t, s.Document)
	assert.Contains(t, s.NameFromRef(), "document@")

	doc := s.Document
	assert.Equal(t, "object", doc.Type)
	assert.Equal(t, []string{"tools"}, doc.Required)

	list, ok := doc.Properties.Get("tools")
	require.True(t, ok)
	assert.Equal(t, "array", list.Type)
	assert.Equal(t, "Tool definitions", list.Description)
	require.NotNil(t, list.Items)

	tool := list.Items
	assert.Empty(t, tool.Ref)
	assert.Equal(t, "object", tool.Type)
	assert.Contains(t, tool.Required, "name")
	assert.NotContains(t, tool.Required, "tags")

	var names []string
	for pair := tool.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	assert.Equal(t, []string{
		"name", "description", "category", "tags", "path", "method",
		"parameters", "examples", "enabled", "priority", "timeout",
	}, names)

	params, ok := tool.Properties.Get("parameters")
	require.True(t, ok)
	require.NotNil(t, params.Items)
	assert.Empty(t, params.Items.Ref)

	ptype, ok := params.Items.Properties.Get("type")
	require.True(t, ok)
	assert.Equal(t, []any{"string", "number", "boolean", "object", "array"}, ptype.Enum)

	// the document has no references left
	js := s.String()
	assert.NotContains(t, js, "$ref")
	assert.Contains(t, js, `"parameters"`)

	// reflected definitions are not modified
	assert.NotEmpty(t, s.Definitions)

	s2, err := schema.New(reflect.TypeOf(&document{}))
	require.NoError(t, err)
	assert.Equal(t, js, s2.String())

	s3, err := schema.New(reflect.TypeOf(document{}))
	require.NoError(t, err)
	assert.Same(t, s, s3)
}

func Test_New_Errors(t *testing.T) {
	_, err := schema.New(nil)
	assert.EqualError(t, err, "type is required")

	_, err = schema.New(reflect.TypeOf(1))
	assert.EqualError(t, err, "unsupported type int: must be a struct")
}

func Test_Parameters(t *testing.T) {
	tool := &tools.Tool{
		Name:        "list_files",
		Description: "List files in a directory",
		Parameters: []tools.Parameter{
			{Name: "path", Type: tools.TypeString, Description: "Directory", Required: true, Default: "."},
			{Name: "limit", Type: tools.TypeNumber, Constraints: map[string]any{"minimum": 1, "maximum": 100.5}},
			{Name: "recursive", Type: tools.TypeBoolean},
			{Name: "sort", Type: tools.TypeString, Constraints: map[string]any{
				"enum":      []any{"name", "size"},
				"pattern":   "^[a-z]+$",
				"minLength": 2,
				"maxLength": int64(10),
				"unknown":   true,
			}},
			{Name: "exclude", Type: tools.TypeArray},
		},
	}

	s := schema.Parameters(tool)
	js, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(js, &m))

	assert.Equal(t, "object", m["type"])
	assert.Equal(t, "list_files", m["title"])
	assert.Equal(t, "List files in a directory", m["description"])
	assert.Equal(t, false, m["additionalProperties"])
	assert.Equal(t, []any{"path"}, m["required"])

	props := m["properties"].(map[string]any)
	assert.Len(t, props, 5)
	assert.Equal(t, map[string]any{
		"type":        "string",
		"description": "Directory",
		"default":     ".",
	}, props["path"])
	assert.Equal(t, map[string]any{
		"type":    "number",
		"minimum": float64(1),
		"maximum": 100.5,
	}, props["limit"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["recursive"])
	assert.Equal(t, map[string]any{
		"type":      "string",
		"enum":      []any{"name", "size"},
		"pattern":   "^[a-z]+$",
		"minLength": float64(2),
		"maxLength": float64(10),
	}, props["sort"])
	assert.Equal(t, map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}, props["exclude"])

	var order []string
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	assert.Equal(t, []string{"path", "limit", "recursive", "sort", "exclude"}, order)
}

func Test_Parameters_Empty(t *testing.T) {
	s := schema.Parameters(&tools.Tool{Name: "git_status"})
	assert.Equal(t, "object", s.Type)
	assert.Empty(t, s.Required)
	assert.Equal(t, 0, s.Properties.Len())
}
