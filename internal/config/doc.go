// Package config loads, validates, and defaults the TOML configuration shared
// by the abstractor daemon and CLI.
package config
