// Package queue persists title searches in SQLite and owns their lifecycle:
// status transitions, progress clamping, the append-only error log, and
// heartbeat-based reclaim of stale processing rows.
package queue
