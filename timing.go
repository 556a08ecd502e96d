package strata

import "time"

// Core timing and sizing defaults. These define the fundamental
// background behavior of the store.
const (
	// DefaultDebounce is the change-notification coalescence window.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultWatchDebounce is the file-change coalescence window used by
	// the reload watcher.
	DefaultWatchDebounce = 500 * time.Millisecond

	// DefaultPoolWorkers caps concurrent provider hydrations.
	DefaultPoolWorkers = 4

	// ShutdownTimeout bounds how long teardown waits for in-flight
	// hydrate jobs before releasing pool resources.
	ShutdownTimeout = 5 * time.Second
)

// DefaultSecretSegment is the reserved map field that marks an
// encrypted value: {".c5encval": [algorithm, key name, base64]}.
const DefaultSecretSegment = ".c5encval"
