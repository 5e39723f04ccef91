package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/toolrouter/utils"
	"github.com/effective-security/xlog"
)

// ErrorResponse is the body of failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of the status request
type StatusResponse struct {
	Health        router.Health        `json:"health"`
	Configuration router.Configuration `json:"configuration"`
	Registry      registry.Stats       `json:"registry"`
	Cache         router.CacheStats    `json:"cache"`
}

// RollbackRequest is the body of the rollback request
type RollbackRequest struct {
	Enable *bool  `json:"enable"`
	Reason string `json:"reason,omitempty"`
}

// RollbackResponse is the body of the rollback response
type RollbackResponse struct {
	Success         bool      `json:"success"`
	RollbackEnabled bool      `json:"rollbackEnabled"`
	Changed         bool      `json:"changed"`
	Reason          string    `json:"reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Message         string    `json:"message"`
}

// ToolsResponse is the body of the tools request
type ToolsResponse struct {
	Tools []*tools.Tool `json:"tools"`
	Total int           `json:"total"`
}

// ToolStateRequest is the body of the tool state request
type ToolStateRequest struct {
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// CacheClearResponse is the body of the cache clear request
type CacheClearResponse struct {
	Cleared bool `json:"cleared"`
	Entries int  `json:"entries"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := new(model.SuggestionRequest)
	if err := decodeBody(w, r, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.router.Suggest(ctx, req)
	if err != nil {
		if ve, ok := tools.IsValidationError(err); ok {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		logger.ContextKV(ctx, xlog.ERROR, "reason", "suggest", "err", err.Error())
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.router.GetHealthStatus(r.Context())
	status := http.StatusOK
	if h.Status == router.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.ForceHealthCheck(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, &StatusResponse{
		Health:        s.router.GetHealthStatus(ctx),
		Configuration: s.router.Configuration(),
		Registry:      s.router.Registry().Stats(),
		Cache:         s.router.CacheStats(ctx),
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.GetPerformanceStats(r.Context()))
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := new(RollbackRequest)
	if err := decodeBody(w, r, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enable == nil {
		writeError(w, http.StatusBadRequest, "enable: must be a boolean")
		return
	}

	enable := *req.Enable
	changed := s.router.SetEmergencyRollback(ctx, enable, req.Reason)

	state := "disabled"
	if enable {
		state = "enabled"
	}
	msg := "emergency rollback " + state
	if !changed {
		msg = "emergency rollback already " + state
	}

	writeJSON(w, http.StatusOK, &RollbackResponse{
		Success:         true,
		RollbackEnabled: s.router.IsRollbackEnabled(),
		Changed:         changed,
		Reason:          req.Reason,
		Timestamp:       time.Now().UTC(),
		Message:         msg,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	reg := s.router.Registry()
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	tags := utils.SplitList(q.Get("tag"))

	var list []*tools.Tool
	switch {
	case category != "" && len(tags) > 0:
		for _, t := range reg.GetToolsByTags(tags) {
			if t.Category == category {
				list = append(list, t)
			}
		}
	case category != "":
		list = reg.GetToolsByCategory(category)
	case len(tags) > 0:
		list = reg.GetToolsByTags(tags)
	default:
		list = reg.GetAllTools()
	}
	if list == nil {
		list = []*tools.Tool{}
	}

	writeJSON(w, http.StatusOK, &ToolsResponse{
		Tools: list,
		Total: len(list),
	})
}

func (s *Server) handleToolState(w http.ResponseWriter, r *http.Request) {
	req := new(ToolStateRequest)
	if err := decodeBody(w, r, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name: is required")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled: must be a boolean")
		return
	}
	if !s.router.SetToolEnabled(r.Context(), req.Name, *req.Enabled) {
		writeError(w, http.StatusNotFound, "tool not found: "+req.Name)
		return
	}

	t, _ := s.router.Registry().Get(req.Name)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.router.ClearCache(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "clear_cache", "err", err.Error())
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, &CacheClearResponse{Cleared: true, Entries: n})
}

func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Verification(r.Context()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.Errorf("invalid request body: %s", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.KV(xlog.ERROR, "reason", "encode", "err", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &ErrorResponse{Error: msg})
}
