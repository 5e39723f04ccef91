// Package events provides a synchronous, in-process event emitter
// used by the router to announce suggestions, rollbacks, registry and health changes.
package events
