package scoring

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/tools"
)

// pathParameter is filled from the current page of the application state
const pathParameter = "path"

type paramPatterns struct {
	assign *regexp.Regexp
	follow *regexp.Regexp
}

var patternsCache sync.Map // map[string]*paramPatterns

func patternsFor(name string) *paramPatterns {
	if p, ok := patternsCache.Load(name); ok {
		return p.(*paramPatterns)
	}
	q := regexp.QuoteMeta(name)
	p := &paramPatterns{
		assign: regexp.MustCompile(`(?i)\b` + q + `\s*[:=]\s*(\S+)`),
		follow: regexp.MustCompile(`(?i)\b` + q + `\s+(\S+)`),
	}
	actual, _ := patternsCache.LoadOrStore(name, p)
	return actual.(*paramPatterns)
}

// ExtractParameter looks for `name: value`, `name=value` or `name value`
// in the query and converts the value to the declared type.
func ExtractParameter(query string, p *tools.Parameter) (any, bool) {
	if query == "" || p.Name == "" {
		return nil, false
	}
	pp := patternsFor(p.Name)
	m := pp.assign.FindStringSubmatch(query)
	if m == nil {
		m = pp.follow.FindStringSubmatch(query)
	}
	if m == nil {
		return nil, false
	}
	return ConvertValue(m[1], p.Type)
}

// ConvertValue converts raw text to the parameter type.
// Values of unknown types are returned as strings,
// text that is not a JSON object is rejected for the object type.
func ConvertValue(raw string, typ tools.ParameterType) (any, bool) {
	switch typ {
	case tools.TypeObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, false
		}
		return obj, true
	case tools.TypeArray:
		var list []string
		for _, s := range strings.Split(trimValue(raw), ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		return list, len(list) > 0
	}

	v := trimValue(raw)
	if v == "" {
		return nil, false
	}
	switch typ {
	case tools.TypeNumber:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
		return nil, false
	case tools.TypeBoolean:
		switch strings.ToLower(v) {
		case "true", "yes", "1", "on":
			return true, true
		}
		return false, true
	default:
		return v, true
	}
}

func trimValue(s string) string {
	return strings.Trim(strings.TrimRight(s, ".,;"), `"'`)
}

// ExtractParameters returns argument bindings for the tool parameters:
// the value found in the query, otherwise a copy of the parameter default.
// Returns nil when nothing is bound.
func ExtractParameters(query string, t *tools.Tool) map[string]any {
	var res map[string]any
	for i := range t.Parameters {
		p := &t.Parameters[i]
		v, ok := ExtractParameter(query, p)
		if !ok {
			if p.Default == nil {
				continue
			}
			v = tools.CloneValue(p.Default)
		}
		if res == nil {
			res = make(map[string]any, len(t.Parameters))
		}
		res[p.Name] = v
	}
	return res
}

// ParameterHints returns a hint for every tool parameter.
// The suggested value is taken from the query, then the context, then the default.
func ParameterHints(query string, t *tools.Tool, c *model.Context) map[string]model.ParameterHint {
	if len(t.Parameters) == 0 {
		return nil
	}
	res := make(map[string]model.ParameterHint, len(t.Parameters))
	for i := range t.Parameters {
		p := &t.Parameters[i]
		h := model.ParameterHint{
			Description: p.Description,
			Required:    p.Required,
			Type:        p.Type,
		}
		if v, ok := ExtractParameter(query, p); ok {
			h.SuggestedValue = v
		} else if page := c.CurrentPage(); page != "" && strings.EqualFold(p.Name, pathParameter) {
			h.SuggestedValue = page
		} else {
			h.SuggestedValue = tools.CloneValue(p.Default)
		}
		res[p.Name] = h
	}
	return res
}
