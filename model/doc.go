// Package model defines the suggestion request and response types
// shared by the matcher, scoring engine, router and transports.
package model
