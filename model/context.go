package model

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/effective-security/xdb/pkg/flake"
)

// UserPreferences are the user signals used to bias ranking.
type UserPreferences struct {
	PreferredTools      []string `json:"preferredTools,omitempty" yaml:"preferredTools,omitempty"`
	PreferredCategories []string `json:"preferredCategories,omitempty" yaml:"preferredCategories,omitempty"`
	Language            string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// ApplicationState describes where the user is in the application.
type ApplicationState struct {
	CurrentCategory string `json:"currentCategory,omitempty" yaml:"currentCategory,omitempty"`
	CurrentPage     string `json:"currentPage,omitempty" yaml:"currentPage,omitempty"`
	UserRole        string `json:"userRole,omitempty" yaml:"userRole,omitempty"`
}

// Session identifies the caller session.
type Session struct {
	UserID    string    `json:"userId,omitempty" yaml:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
}

// Context is caller-supplied, purely descriptive input.
// All methods are safe on nil receiver.
type Context struct {
	UserPreferences  *UserPreferences  `json:"userPreferences,omitempty" yaml:"userPreferences,omitempty"`
	ApplicationState *ApplicationState `json:"applicationState,omitempty" yaml:"applicationState,omitempty"`
	Session          *Session          `json:"session,omitempty" yaml:"session,omitempty"`
}

// PrefersCategory returns true if the category is in the preferred categories
func (c *Context) PrefersCategory(category string) bool {
	if c == nil || c.UserPreferences == nil || category == "" {
		return false
	}
	return slices.Contains(c.UserPreferences.PreferredCategories, category)
}

// PrefersTool returns true if the tool name is in the preferred tools
func (c *Context) PrefersTool(name string) bool {
	if c == nil || c.UserPreferences == nil || name == "" {
		return false
	}
	return slices.Contains(c.UserPreferences.PreferredTools, name)
}

// CurrentCategory returns the application's current category, if set
func (c *Context) CurrentCategory() string {
	if c == nil || c.ApplicationState == nil {
		return ""
	}
	return c.ApplicationState.CurrentCategory
}

// CurrentPage returns the application's current page, if set
func (c *Context) CurrentPage() string {
	if c == nil || c.ApplicationState == nil {
		return ""
	}
	return c.ApplicationState.CurrentPage
}

type contextKey int

const (
	keyRequestID contextKey = iota
)

// WithRequestID returns a new context with the request ID value
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// GetRequestID retrieves the request ID from the context,
// or empty string if not set.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// NewRequestID generates a new request ID using the flake ID generator.
func NewRequestID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
