package scoring

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"

	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/tools"
)

// Component names, used as keys for weight overrides.
const (
	WeightLexical           = "lexical"
	WeightPreferredCategory = "preferred_category"
	WeightPreferredTool     = "preferred_tool"
	WeightPriority          = "priority"
)

// MaxScore is the upper bound of a score
const MaxScore = 100.0

// DefaultWeights returns the default component weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		WeightLexical:           70,
		WeightPreferredCategory: 15,
		WeightPreferredTool:     10,
		WeightPriority:          15,
	}
}

// RollbackReasoning is the reasoning of priority-only ranking
const RollbackReasoning = "emergency rollback: ranked by priority"

// Engine scores tools for a query.
// Engine is immutable and safe for concurrent use.
type Engine struct {
	weights map[string]float64
}

// NewEngine creates an Engine, merging weight overrides over the defaults.
// Unknown keys are ignored here, router.Config rejects them before
// an engine is created.
func NewEngine(overrides map[string]float64) *Engine {
	w := DefaultWeights()
	for k, v := range overrides {
		if _, ok := w[k]; ok {
			w[k] = v
		}
	}
	return &Engine{weights: w}
}

// Weights returns a copy of the effective weights
func (e *Engine) Weights() map[string]float64 {
	return maps.Clone(e.weights)
}

// ScoreTools returns one score per tool, sorted by score descending,
// then by priority descending, then by the input order.
func (e *Engine) ScoreTools(query string, list []*tools.Tool, c *model.Context) []model.ToolScore {
	q := Tokenize(query)
	res := make([]model.ToolScore, 0, len(list))
	for _, t := range list {
		res = append(res, e.score(query, q, t, c))
	}
	Sort(res)
	return res
}

// Score returns the score of a single tool
func (e *Engine) Score(query string, tool *tools.Tool, c *model.Context) model.ToolScore {
	return e.score(query, Tokenize(query), tool, c)
}

func (e *Engine) score(query string, q []string, t *tools.Tool, c *model.Context) model.ToolScore {
	var total float64
	var reasons []string

	matched := 0
	if len(q) > 0 {
		ts := toolTokens(t)
		for _, tok := range q {
			if ts.has(tok) {
				matched++
			}
		}
		total += e.weights[WeightLexical] * float64(matched) / float64(len(q))
	}
	if matched > 0 {
		reasons = append(reasons, fmt.Sprintf("%d/%d query terms matched", matched, len(q)))
	} else {
		reasons = append(reasons, "no query terms matched")
	}

	if c.PrefersCategory(t.Category) {
		total += e.weights[WeightPreferredCategory]
		reasons = append(reasons, "preferred category boost applied")
	}
	if c.PrefersTool(t.Name) {
		total += e.weights[WeightPreferredTool]
		reasons = append(reasons, "preferred tool boost applied")
	}

	if p := e.priorityScore(t); p > 0 {
		total += p
		reasons = append(reasons, fmt.Sprintf("priority %d", t.Priority))
	}

	return model.ToolScore{
		Tool:           t,
		Score:          round(clamp(total, 0, MaxScore)),
		Reasoning:      strings.Join(reasons, "; "),
		Parameters:     ExtractParameters(query, t),
		ParameterHints: ParameterHints(query, t, c),
	}
}

// RankByPriority ranks tools by priority descending, then by the input order,
// without lexical scoring. It is the emergency rollback fallback.
func (e *Engine) RankByPriority(query string, list []*tools.Tool, c *model.Context) []model.ToolScore {
	res := make([]model.ToolScore, 0, len(list))
	for _, t := range list {
		res = append(res, model.ToolScore{
			Tool:           t,
			Score:          round(e.priorityScore(t)),
			Reasoning:      RollbackReasoning,
			Parameters:     ExtractParameters(query, t),
			ParameterHints: ParameterHints(query, t, c),
		})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Tool.Priority > res[j].Tool.Priority
	})
	return res
}

func (e *Engine) priorityScore(t *tools.Tool) float64 {
	w := e.weights[WeightPriority]
	return clamp(w*float64(t.Priority)/100, 0, w)
}

// Sort sorts scores by score descending, then by priority descending,
// keeping the existing order for full ties.
func Sort(list []model.ToolScore) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Tool.Priority > list[j].Tool.Priority
	})
}

func toolTokens(t *tools.Tool) tokenSet {
	ts := tokenSet{}
	ts.add(t.Name)
	ts.add(t.Description)
	for _, tag := range t.Tags {
		ts.add(tag)
	}
	for _, ex := range t.Examples {
		ts.add(ex)
	}
	return ts
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
