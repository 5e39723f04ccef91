// Package catalog loads tool definitions from YAML, JSON or TOML files
// and registers them in a registry.
//
// A catalogue document has a single `tools` list:
//
//	tools:
//	  - name: git_status
//	    description: Show the working tree status
//	    category: git
//	    tags: [git, status]
//	    path: /api/git/status
//	    priority: 80
//
// `method` defaults to GET and `enabled` defaults to true.
package catalog
