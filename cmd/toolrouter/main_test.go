package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/effective-security/toolrouter/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = "testdata/toolrouter.yaml"

func run(ctx context.Context, args ...string) (string, string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func suggest(t *testing.T, args ...string) *model.SuggestionResponse {
	out, _, err := run(context.Background(), append([]string{"-c", testConfig, "suggest"}, args...)...)
	require.NoError(t, err)
	res := new(model.SuggestionResponse)
	require.NoError(t, json.Unmarshal([]byte(out), res), out)
	return res
}

func TestSuggest(t *testing.T) {
	res := suggest(t, "generate", "captions", "for", "images")
	assert.Equal(t, "generate captions for images", res.Query)
	require.Len(t, res.Suggestions, 4)
	assert.Equal(t, "generate_captions", res.Suggestions[0].Tool.Name)
	assert.Equal(t, 4, res.TotalToolsConsidered)
	assert.Equal(t, model.ModeNormal, res.Mode)

	res = suggest(t, "--max", "1", "git", "log")
	assert.Equal(t, []string{"git_log"}, res.ToolNames())

	res = suggest(t, "--rollback", "-n", "2", "git", "log")
	assert.Equal(t, model.ModeRollback, res.Mode)
	assert.Equal(t, []string{"list_files", "git_status"}, res.ToolNames())

	res = suggest(t, "--page", "/home/docs", "list", "files")
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "list_files", res.Suggestions[0].Tool.Name)
	assert.Equal(t, "/home/docs", res.Suggestions[0].ParameterHints["path"].SuggestedValue)

	res = suggest(t, "--min-score", "50", "git", "status")
	assert.Equal(t, []string{"git_status"}, res.ToolNames())
}

func TestSuggest_Verbose(t *testing.T) {
	out, errOut, err := run(context.Background(), "-c", testConfig, "suggest", "-v", "git", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"git_status"`)
	assert.Contains(t, errOut, "Event: suggestion_served")
}

func TestSuggest_Errors(t *testing.T) {
	_, _, err := run(context.Background(), "-c", testConfig, "suggest")
	assert.Error(t, err)

	_, _, err = run(context.Background(), "-c", testConfig, "suggest", "  ")
	require.Error(t, err)
	assert.EqualError(t, err, "invalid request: query: is required")

	_, _, err = run(context.Background(), "-c", "testdata/missing.yaml", "suggest", "git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")

	_, _, err = run(context.Background(), "-c", testConfig, "--log-level", "loud", "suggest", "git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level: must be one of")

	_, _, err = run(context.Background(), "-c", testConfig, "--catalog", "testdata/missing.json", "suggest", "git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog")
}

func TestList(t *testing.T) {
	out, _, err := run(context.Background(), "-c", testConfig, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "git_status")
	assert.Contains(t, out, "generate_captions")
	assert.NotContains(t, out, "search_web")

	out, _, err = run(context.Background(), "-c", testConfig, "--catalog", "testdata/extra.json", "list", "--category", "search")
	require.NoError(t, err)
	assert.Contains(t, out, "search_web")
	assert.NotContains(t, out, "git_status")

	out, _, err = run(context.Background(), "-c", testConfig, "list", "--tag", "git,log")
	require.NoError(t, err)
	assert.Contains(t, out, "git_log")
	assert.NotContains(t, out, "git_status")

	out, _, err = run(context.Background(), "-c", testConfig, "list", "--json", "--category", "git")
	require.NoError(t, err)
	var desc struct {
		Tools []struct {
			Name     string
			Category string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &desc), out)
	require.Len(t, desc.Tools, 2)
	assert.Equal(t, "git", desc.Tools[0].Category)
}

func TestSchema(t *testing.T) {
	out, _, err := run(context.Background(), "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Contains(t, doc["properties"], "tools")
	assert.NotContains(t, out, "$ref")

	out, _, err = run(context.Background(), "-c", testConfig, "schema", "--tool", "list_files")
	require.NoError(t, err)
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &params))
	assert.Equal(t, "list_files", params["title"])
	assert.Equal(t, []any{"path"}, params["required"])

	_, _, err = run(context.Background(), "-c", testConfig, "schema", "--tool", "missing")
	assert.EqualError(t, err, "tool not found: missing")
}

func TestConfig(t *testing.T) {
	out, _, err := run(context.Background(), "-c", testConfig, "--log-level", "warning", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: WARNING")
	assert.Contains(t, out, "127.0.0.1:0")
	assert.Contains(t, out, "cache_ttl: 30s")
	assert.Contains(t, out, "testdata/tools.yaml")
	assert.Contains(t, out, "backend: memory")
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := run(ctx, "-c", testConfig, "serve")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestServe_BadRedis(t *testing.T) {
	t.Setenv("TOOLROUTER_TEST_REDIS_URL", "not a url")
	_, _, err := run(context.Background(), "-c", "testdata/redis.yaml", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis URL")
}
