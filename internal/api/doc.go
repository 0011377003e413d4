// Package api defines the transport-facing representations of searches and
// the read/act services shared by the HTTP server, the IPC server, and the
// CLI. Field names follow the JSON contracts the consuming UI depends on.
package api
