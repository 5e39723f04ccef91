package utils

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

func ToYAML(val any) string {
	js, _ := yaml.Marshal(val)
	return string(js)
}

// Stringify returns the String() of the value if it implements fmt.Stringer,
// the value itself for strings, or JSON otherwise.
func Stringify(s any) string {
	if v, ok := s.(interface{ String() string }); ok {
		return v.String()
	}
	if v, ok := s.(string); ok {
		return v
	}
	return ToJSON(s)
}

// SplitList splits a comma separated list,
// trims spaces and drops empty values.
func SplitList(s string) []string {
	var res []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}
