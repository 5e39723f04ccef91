// Package matcher decides which registered tools are eligible to be
// suggested for a request context.
package matcher

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/tools"
)

// Mode defines how the context affects eligibility
type Mode string

const (
	// ModeBoost never excludes an enabled tool, the context only
	// influences the score.
	ModeBoost Mode = "boost"
	// ModeExclusive restricts the tools to the application's current
	// category, when one is set and at least one tool matches it.
	ModeExclusive Mode = "exclusive"
)

// ParseMode returns the mode by name, empty value returns ModeBoost
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeBoost:
		return ModeBoost, nil
	case ModeExclusive:
		return ModeExclusive, nil
	default:
		return "", errors.Errorf("unsupported context mode: %q", s)
	}
}

// Matcher filters tools by context
type Matcher struct {
	mode Mode
}

// New returns a Matcher in the given mode
func New(mode Mode) *Matcher {
	if mode == "" {
		mode = ModeBoost
	}
	return &Matcher{mode: mode}
}

// Mode returns the matcher mode
func (m *Matcher) Mode() Mode {
	return m.mode
}

// IsSuitable returns true if the tool can be suggested in the context.
// A disabled tool is never suitable.
func (m *Matcher) IsSuitable(tool *tools.Tool, c *model.Context) bool {
	if tool == nil || !tool.Enabled {
		return false
	}
	if m.mode != ModeExclusive {
		return true
	}
	category := c.CurrentCategory()
	return category == "" || tool.Category == category
}

// GetContextualTools returns the suitable tools, keeping the input order.
func (m *Matcher) GetContextualTools(list []*tools.Tool, c *model.Context) []*tools.Tool {
	res := make([]*tools.Tool, 0, len(list))
	for _, t := range list {
		if m.IsSuitable(t, c) {
			res = append(res, t)
		}
	}

	if len(res) == 0 && m.mode == ModeExclusive && c.CurrentCategory() != "" {
		// nothing in the current category, do not starve the request
		for _, t := range list {
			if t != nil && t.Enabled {
				res = append(res, t)
			}
		}
	}
	return res
}
