// Package tools defines the Tool definition that the router suggests: a named,
// parameterized action with its invocation endpoint, tags and sample phrases.
// Definitions are validated before they are admitted to a registry.
package tools
