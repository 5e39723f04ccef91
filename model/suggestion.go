package model

import (
	"github.com/effective-security/toolrouter/tools"
)

// DefaultMaxSuggestions is used when the request does not specify the limit
const DefaultMaxSuggestions = 5

// Mode is the router ranking mode that produced a response
type Mode string

// Modes
const (
	ModeNormal   Mode = "normal"
	ModeRollback Mode = "rollback"
)

// SuggestionRequest is the input of the router
type SuggestionRequest struct {
	Query   string   `json:"query" yaml:"query"`
	Context *Context `json:"context,omitempty" yaml:"context,omitempty"`
	// MaxSuggestions is the maximum number of suggestions, 0 means default.
	MaxSuggestions int `json:"maxSuggestions,omitempty" yaml:"maxSuggestions,omitempty"`
	// MinScore drops suggestions scored below it.
	MinScore float64 `json:"minScore,omitempty" yaml:"minScore,omitempty"`
}

// ParameterHint helps a caller to fill in a tool parameter
type ParameterHint struct {
	Description    string              `json:"description,omitempty" yaml:"description,omitempty"`
	Required       bool                `json:"required" yaml:"required"`
	Type           tools.ParameterType `json:"type" yaml:"type"`
	SuggestedValue any                 `json:"suggestedValue,omitempty" yaml:"suggestedValue,omitempty"`
}

// ToolScore is a scored suggestion of a tool
type ToolScore struct {
	Tool *tools.Tool `json:"tool" yaml:"tool"`
	// Score is relevance in [0, 100]
	Score     float64 `json:"score" yaml:"score"`
	Reasoning string  `json:"reasoning" yaml:"reasoning"`
	// Parameters are proposed argument bindings
	Parameters     map[string]any           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ParameterHints map[string]ParameterHint `json:"parameterHints,omitempty" yaml:"parameterHints,omitempty"`
}

// CacheInfo describes whether the response was served from cache
type CacheInfo struct {
	Hit bool   `json:"hit" yaml:"hit"`
	Key string `json:"key" yaml:"key"`
	// Age of the cached entry in milliseconds
	Age float64 `json:"age" yaml:"age"`
}

// SuggestionResponse is the output of the router
type SuggestionResponse struct {
	Suggestions []ToolScore `json:"suggestions" yaml:"suggestions"`
	RequestID   string      `json:"requestId" yaml:"requestId"`
	Query       string      `json:"query" yaml:"query"`
	// ProcessingTime in milliseconds
	ProcessingTime       float64   `json:"processingTime" yaml:"processingTime"`
	TotalToolsConsidered int       `json:"totalToolsConsidered" yaml:"totalToolsConsidered"`
	Mode                 Mode      `json:"mode" yaml:"mode"`
	CacheInfo            CacheInfo `json:"cacheInfo" yaml:"cacheInfo"`
}

// Clone returns a deep copy of the response that does not share
// suggestions, parameter values or hints with the original.
// Tool definitions are immutable and shared.
func (r *SuggestionResponse) Clone() *SuggestionResponse {
	c := *r
	if r.Suggestions != nil {
		c.Suggestions = make([]ToolScore, len(r.Suggestions))
		for i, s := range r.Suggestions {
			s.Parameters = tools.CloneValue(s.Parameters)
			if s.ParameterHints != nil {
				hints := make(map[string]ParameterHint, len(s.ParameterHints))
				for name, h := range s.ParameterHints {
					h.SuggestedValue = tools.CloneValue(h.SuggestedValue)
					hints[name] = h
				}
				s.ParameterHints = hints
			}
			c.Suggestions[i] = s
		}
	}
	return &c
}

// ToolNames returns the names of the suggested tools, in order
func (r *SuggestionResponse) ToolNames() []string {
	names := make([]string, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		if s.Tool != nil {
			names = append(names, s.Tool.Name)
		}
	}
	return names
}
