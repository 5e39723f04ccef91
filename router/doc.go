// Package router orchestrates the tool registry, context matcher and
// scoring engine to serve ranked tool suggestions.
//
// The router caches responses, keeps performance counters,
// reports health and provides the emergency rollback switch,
// which replaces scoring with priority-only ranking.
package router
