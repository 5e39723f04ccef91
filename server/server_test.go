package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/mocks/mockstore"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/toolrouter/server"
	"github.com/effective-security/toolrouter/store"
	"github.com/effective-security/toolrouter/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testTools() []*tools.Tool {
	return []*tools.Tool{
		{
			Name:        "git_status",
			Description: "Show the working tree status",
			Category:    "git",
			Tags:        []string{"git", "status"},
			Path:        "/api/git/status",
			Method:      tools.MethodGet,
			Enabled:     true,
			Priority:    80,
		},
		{
			Name:        "git_log",
			Description: "Show commit logs",
			Category:    "git",
			Tags:        []string{"git", "log"},
			Path:        "/api/git/log",
			Method:      tools.MethodGet,
			Enabled:     true,
			Priority:    70,
		},
		{
			Name:        "list_files",
			Description: "List files in a directory",
			Category:    "file",
			Tags:        []string{"file", "list"},
			Path:        "/api/files",
			Method:      tools.MethodGet,
			Parameters: []tools.Parameter{
				{Name: "path", Type: tools.TypeString, Required: true, Default: "."},
			},
			Enabled:  true,
			Priority: 90,
		},
	}
}

func newServer(t *testing.T, list []*tools.Tool, opts []router.Option, sopts ...server.Option) (*server.Server, *router.Router) {
	reg := registry.New()
	for _, tl := range list {
		require.NoError(t, reg.Register(tl))
	}
	r, err := router.New(router.Config{}, reg, opts...)
	require.NoError(t, err)
	return server.New(r, sopts...), r
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[server.ErrorResponse](t, w).Error
}

func TestSuggest(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodPost, server.PathSuggest, `{"query": "git status", "maxSuggestions": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	res := decode[model.SuggestionResponse](t, w)
	assert.Equal(t, []string{"git_status", "git_log"}, res.ToolNames())
	assert.Equal(t, "git status", res.Query)
	assert.Equal(t, model.ModeNormal, res.Mode)
	assert.NotEmpty(t, res.RequestID)
	assert.False(t, res.CacheInfo.Hit)

	w = call(t, h, http.MethodPost, server.PathSuggest, `{"query": "git status", "maxSuggestions": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[model.SuggestionResponse](t, w)
	assert.True(t, res.CacheInfo.Hit)

	w = call(t, h, http.MethodPost, server.PathSuggest, `{"query": "list files", "context": {"applicationState": {"currentPage": "/home/docs"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[model.SuggestionResponse](t, w)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "list_files", res.Suggestions[0].Tool.Name)
	assert.Equal(t, "/home/docs", res.Suggestions[0].ParameterHints["path"].SuggestedValue)
}

func TestSuggest_BadRequest(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	tcases := []struct {
		name string
		body string
		exp  string
	}{
		{"empty query", `{"query": "  "}`, "invalid request: query: is required"},
		{"negative", `{"query": "git", "maxSuggestions": -1}`, "invalid request: maxSuggestions: must not be less than 0"},
		{"no body", ``, "request body is required"},
		{"bad json", `{"query":`, "invalid request body: "},
		{"bad type", `{"query": 42}`, "invalid request body: "},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(t, h, http.MethodPost, server.PathSuggest, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorOf(t, w), tc.exp)
		})
	}
}

type panicCache struct {
	store.Cache
}

func (c *panicCache) Get(context.Context, string) (*store.Entry, error) {
	panic("cache is corrupted")
}

func TestSuggest_InternalError(t *testing.T) {
	cache := &panicCache{Cache: store.NewMemoryCache(10, time.Minute)}
	s, _ := newServer(t, testTools(), []router.Option{router.WithCache(cache)})

	w := call(t, s.Handler(), http.MethodPost, server.PathSuggest, `{"query": "git status"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", errorOf(t, w))
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	tcases := []struct {
		method string
		path   string
		allow  string
	}{
		{http.MethodGet, server.PathSuggest, http.MethodPost},
		{http.MethodPost, server.PathHealth, http.MethodGet},
		{http.MethodGet, server.PathHealthCheck, http.MethodPost},
		{http.MethodDelete, server.PathStatus, http.MethodGet},
		{http.MethodPut, server.PathPerformance, http.MethodGet},
		{http.MethodGet, server.PathRollback, http.MethodPost},
		{http.MethodPost, server.PathTools, http.MethodGet},
		{http.MethodGet, server.PathToolState, http.MethodPost},
		{http.MethodGet, server.PathCacheClear, http.MethodPost},
		{http.MethodPost, server.PathVerification, http.MethodGet},
		{http.MethodOptions, server.PathHealth, http.MethodGet},
	}
	for _, tc := range tcases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := call(t, h, tc.method, tc.path, "")
			require.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, tc.allow, w.Header().Get("Allow"))
			assert.Equal(t, "method not allowed", errorOf(t, w))
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS(t *testing.T) {
	s, _ := newServer(t, testTools(), nil, server.WithCORS(true))
	h := s.Handler()

	w := call(t, h, http.MethodOptions, server.PathSuggest, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, w.Body.String())

	w = call(t, h, http.MethodGet, server.PathHealth, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	s, r := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodGet, server.PathHealth, "")
	require.Equal(t, http.StatusOK, w.Code)
	hs := decode[router.Health](t, w)
	assert.Equal(t, router.StatusHealthy, hs.Status)
	assert.Equal(t, 3, hs.TotalTools)
	assert.Equal(t, 3, hs.EnabledTools)

	r.EnableEmergencyRollback(context.Background(), "test")
	w = call(t, h, http.MethodGet, server.PathHealth, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, router.StatusDegraded, decode[router.Health](t, w).Status)

	w = call(t, h, http.MethodPost, server.PathHealthCheck, "")
	require.Equal(t, http.StatusOK, w.Code)
	hs = decode[router.Health](t, w)
	assert.Equal(t, router.StatusDegraded, hs.Status)
	assert.Equal(t, []string{"emergency rollback enabled"}, hs.Reasons)
}

func TestHealth_Unhealthy(t *testing.T) {
	s, _ := newServer(t, nil, nil)
	h := s.Handler()

	w := call(t, h, http.MethodGet, server.PathHealth, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	hs := decode[router.Health](t, w)
	assert.Equal(t, router.StatusUnhealthy, hs.Status)
	assert.Equal(t, []string{"no enabled tools registered"}, hs.Reasons)

	// forced check reports the snapshot without failing the request
	w = call(t, h, http.MethodPost, server.PathHealthCheck, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, router.StatusUnhealthy, decode[router.Health](t, w).Status)
}

func TestStatus(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodGet, server.PathStatus, "")
	require.Equal(t, http.StatusOK, w.Code)

	st := decode[server.StatusResponse](t, w)
	assert.Equal(t, router.StatusHealthy, st.Health.Status)
	assert.Equal(t, "boost", string(st.Configuration.ContextMode))
	assert.Equal(t, "1m0s", st.Configuration.CacheTTL)
	assert.Equal(t, 3, st.Registry.TotalTools)
	assert.Equal(t, map[string]int{"git": 2, "file": 1}, st.Registry.Categories)
	assert.Equal(t, "memory", st.Cache.Backend)
	assert.Equal(t, 0, st.Cache.Size)
}

func TestPerformance(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	for range 3 {
		w := call(t, h, http.MethodPost, server.PathSuggest, `{"query": "git log"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := call(t, h, http.MethodPost, server.PathSuggest, `{"query": ""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, h, http.MethodGet, server.PathPerformance, "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[router.PerformanceStats](t, w)
	assert.Equal(t, int64(4), st.TotalRequests)
	assert.Equal(t, int64(3), st.SuccessfulRequests)
	assert.Equal(t, int64(1), st.FailedRequests)
	assert.Equal(t, int64(2), st.CacheHits)
	assert.Equal(t, int64(1), st.CacheMisses)
}

func TestRollback(t *testing.T) {
	s, r := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodPost, server.PathRollback, `{"reason": "test"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "enable: must be a boolean", errorOf(t, w))

	w = call(t, h, http.MethodPost, server.PathRollback, `{"enable": "yes"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "invalid request body: ")
	assert.False(t, r.IsRollbackEnabled())

	w = call(t, h, http.MethodPost, server.PathRollback, `{"enable": true, "reason": "bad scores"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[server.RollbackResponse](t, w)
	assert.True(t, res.Success)
	assert.True(t, res.RollbackEnabled)
	assert.True(t, res.Changed)
	assert.Equal(t, "bad scores", res.Reason)
	assert.Equal(t, "emergency rollback enabled", res.Message)
	assert.False(t, res.Timestamp.IsZero())
	assert.True(t, r.IsRollbackEnabled())

	w = call(t, h, http.MethodPost, server.PathRollback, `{"enable": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[server.RollbackResponse](t, w)
	assert.False(t, res.Changed)
	assert.Equal(t, "emergency rollback already enabled", res.Message)

	w = call(t, h, http.MethodPost, server.PathSuggest, `{"query": "git status"}`)
	require.Equal(t, http.StatusOK, w.Code)
	sr := decode[model.SuggestionResponse](t, w)
	assert.Equal(t, model.ModeRollback, sr.Mode)
	assert.Equal(t, []string{"list_files", "git_status", "git_log"}, sr.ToolNames())

	w = call(t, h, http.MethodPost, server.PathRollback, `{"enable": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[server.RollbackResponse](t, w)
	assert.False(t, res.RollbackEnabled)
	assert.True(t, res.Changed)
	assert.Equal(t, "emergency rollback disabled", res.Message)
}

func TestTools(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	names := func(res server.ToolsResponse) []string {
		var list []string
		for _, tl := range res.Tools {
			list = append(list, tl.Name)
		}
		return list
	}

	tcases := []struct {
		query string
		exp   []string
	}{
		{"", []string{"git_status", "git_log", "list_files"}},
		{"?category=git", []string{"git_status", "git_log"}},
		{"?tag=git,log", []string{"git_log"}},
		{"?tag=git&category=git", []string{"git_status", "git_log"}},
		{"?tag=git&category=file", nil},
		{"?category=unknown", nil},
	}
	for _, tc := range tcases {
		t.Run(tc.query, func(t *testing.T) {
			w := call(t, h, http.MethodGet, server.PathTools+tc.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"tools":[`)
			res := decode[server.ToolsResponse](t, w)
			assert.Equal(t, tc.exp, names(res))
			assert.Equal(t, len(tc.exp), res.Total)
		})
	}
}

func TestToolState(t *testing.T) {
	s, r := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodPost, server.PathToolState, `{"name": "git_log", "enabled": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	tl := decode[tools.Tool](t, w)
	assert.Equal(t, "git_log", tl.Name)
	assert.False(t, tl.Enabled)
	assert.Len(t, r.Registry().GetEnabledTools(), 2)

	w = call(t, h, http.MethodPost, server.PathToolState, `{"name": "missing", "enabled": true}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "tool not found: missing", errorOf(t, w))

	w = call(t, h, http.MethodPost, server.PathToolState, `{"name": "git_log"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "enabled: must be a boolean", errorOf(t, w))

	w = call(t, h, http.MethodPost, server.PathToolState, `{"enabled": true}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name: is required", errorOf(t, w))
}

func TestCacheClear(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)
	h := s.Handler()

	w := call(t, h, http.MethodPost, server.PathSuggest, `{"query": "git status"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = call(t, h, http.MethodPost, server.PathCacheClear, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, server.CacheClearResponse{Cleared: true, Entries: 1}, decode[server.CacheClearResponse](t, w))

	w = call(t, h, http.MethodPost, server.PathCacheClear, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[server.CacheClearResponse](t, w).Entries)
}

func TestCacheClear_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mockstore.NewMockCache(ctrl)
	cache.EXPECT().Clear(gomock.Any()).Return(0, errors.New("connection refused"))

	s, _ := newServer(t, testTools(), []router.Option{router.WithCache(cache)})
	w := call(t, s.Handler(), http.MethodPost, server.PathCacheClear, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", errorOf(t, w))
}

func TestVerification(t *testing.T) {
	s, _ := newServer(t, testTools(), nil)

	w := call(t, s.Handler(), http.MethodGet, server.PathVerification, "")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[router.Verification](t, w)
	assert.Len(t, v.Checks, 6)
	// no traffic yet
	assert.Equal(t, router.CheckFail, v.Status)
}

func TestStart(t *testing.T) {
	s, _ := newServer(t, testTools(), nil,
		server.WithAddr("127.0.0.1:0"),
		server.WithTimeouts(time.Second, time.Second),
	)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return s.Addr() != "127.0.0.1:0"
	}, 5*time.Second, 10*time.Millisecond)

	res, err := http.Get("http://" + s.Addr() + server.PathHealth)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStart_ListenError(t *testing.T) {
	s, _ := newServer(t, testTools(), nil, server.WithAddr("127.0.0.1:-1"))
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on 127.0.0.1:-1")
}
