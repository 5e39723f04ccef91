package model_test

import (
	"context"
	"testing"

	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_NilSafe(t *testing.T) {
	var c *model.Context
	assert.False(t, c.PrefersCategory("git"))
	assert.False(t, c.PrefersTool("git_status"))
	assert.Empty(t, c.CurrentCategory())
	assert.Empty(t, c.CurrentPage())

	c = &model.Context{}
	assert.False(t, c.PrefersCategory("git"))
	assert.Empty(t, c.CurrentCategory())
}

func TestContext_Preferences(t *testing.T) {
	c := &model.Context{
		UserPreferences: &model.UserPreferences{
			PreferredTools:      []string{"git_status"},
			PreferredCategories: []string{"git", "file"},
		},
		ApplicationState: &model.ApplicationState{
			CurrentCategory: "file",
			CurrentPage:     "/home/docs",
		},
	}
	assert.True(t, c.PrefersCategory("git"))
	assert.False(t, c.PrefersCategory("caption"))
	assert.False(t, c.PrefersCategory(""))
	assert.True(t, c.PrefersTool("git_status"))
	assert.False(t, c.PrefersTool("git_log"))
	assert.Equal(t, "file", c.CurrentCategory())
	assert.Equal(t, "/home/docs", c.CurrentPage())
}

func TestRequestID(t *testing.T) {
	id1 := model.NewRequestID()
	id2 := model.NewRequestID()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	ctx := context.Background()
	assert.Empty(t, model.GetRequestID(ctx))
	ctx = model.WithRequestID(ctx, id1)
	assert.Equal(t, id1, model.GetRequestID(ctx))
}

func TestResponse_Clone(t *testing.T) {
	tool := &tools.Tool{Name: "list_files"}
	r := &model.SuggestionResponse{
		RequestID: "1",
		Suggestions: []model.ToolScore{
			{
				Tool:       tool,
				Score:      50,
				Parameters: map[string]any{"path": "/"},
				ParameterHints: map[string]model.ParameterHint{
					"path": {Type: tools.TypeString, SuggestedValue: "/"},
				},
			},
		},
	}

	c := r.Clone()
	require.Len(t, c.Suggestions, 1)
	c.RequestID = "2"
	c.Suggestions[0].Score = 10
	c.Suggestions[0].Parameters["path"] = "/tmp"
	c.Suggestions[0].ParameterHints["extra"] = model.ParameterHint{}

	assert.Equal(t, "1", r.RequestID)
	assert.Equal(t, float64(50), r.Suggestions[0].Score)
	assert.Equal(t, "/", r.Suggestions[0].Parameters["path"])
	assert.Len(t, r.Suggestions[0].ParameterHints, 1)
	assert.Same(t, tool, c.Suggestions[0].Tool)
	assert.Equal(t, []string{"list_files"}, c.ToolNames())

	r.Suggestions[0].Parameters["opts"] = map[string]any{"depth": 1}
	r.Suggestions[0].Parameters["tags"] = []string{"a", "b"}
	r.Suggestions[0].ParameterHints["tags"] = model.ParameterHint{SuggestedValue: []string{"a", "b"}}
	c = r.Clone()
	c.Suggestions[0].Parameters["opts"].(map[string]any)["depth"] = 99
	c.Suggestions[0].Parameters["tags"].([]string)[0] = "MUTATED"
	c.Suggestions[0].ParameterHints["tags"].SuggestedValue.([]string)[1] = "MUTATED"
	assert.Equal(t, map[string]any{"depth": 1}, r.Suggestions[0].Parameters["opts"])
	assert.Equal(t, []string{"a", "b"}, r.Suggestions[0].Parameters["tags"])
	assert.Equal(t, []string{"a", "b"}, r.Suggestions[0].ParameterHints["tags"].SuggestedValue)

	empty := (&model.SuggestionResponse{}).Clone()
	assert.Nil(t, empty.Suggestions)
	assert.Empty(t, empty.ToolNames())
}
