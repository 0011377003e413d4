// Package daemon coordinates the background services of abstractord: the
// workflow manager, the HTTP API, and single-instance locking.
package daemon
