// Package recovery derives user-facing recovery options for failed searches
// from the accumulated error log.
package recovery
