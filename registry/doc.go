// Package registry owns the set of tool definitions and the derived
// category and tag indices used for discovery.
package registry
