// Package logging wraps log/slog with the attribute vocabulary and handler
// construction used across the abstractor daemon and CLI.
package logging
