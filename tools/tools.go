package tools

import (
	"encoding/json"
)

type toolDescription struct {
	Name        string   `json:"Name" yaml:"Name"`
	Description string   `json:"Description" yaml:"Description"`
	Category    string   `json:"Category,omitempty" yaml:"Category,omitempty"`
	Tags        []string `json:"Tags,omitempty" yaml:"Tags,omitempty"`
	Enabled     bool     `json:"Enabled" yaml:"Enabled"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns JSON listing of the tools, in the given order.
func GetDescriptions(list ...*Tool) string {
	d := toolsDescription{
		Tools: make([]toolDescription, 0, len(list)),
	}
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name,
			Description: tool.Description,
			Category:    tool.Category,
			Tags:        tool.Tags,
			Enabled:     tool.Enabled,
		})
	}
	js, _ := json.MarshalIndent(d, "", "\t")
	return string(js)
}
