// Package settings holds the process-wide configuration singleton, in
// the manner of the teacher's settings.Arguments type: a plain struct
// of flag-populated fields, reachable everywhere via a package-level
// accessor rather than threaded through every constructor.
package settings

import "sync"

// Arguments configures one reldbd process.
type Arguments struct {
	// DataDir is the directory the store adapter opens its database in.
	DataDir string
	// LogDir, if non-empty, additionally writes logs to a file under it.
	LogDir string
	// Host and Port are the RPC-free housekeeping listener's bind address,
	// reserved for future use; reldbd itself is a library entry point,
	// not a network server.
	Host string
	Port int
	// Verbose enables debug-level structured logging.
	Verbose bool
	// TraceFile, if non-empty, receives the store's per-statement trace
	// stream (§4.2's optional trace-output sink).
	TraceFile string
}

var (
	once     sync.Once
	instance *Arguments
)

// GetSettings returns the process-wide Arguments singleton, creating it
// with defaults on first call.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{
			DataDir: "./datafiles",
			Host:    "127.0.0.1",
			Port:    1776,
			Verbose: false,
		}
	})
	return instance
}

// Reset restores the singleton to nil so a later GetSettings call
// re-initializes it with defaults. Intended for tests only.
func Reset() {
	once = sync.Once{}
	instance = nil
}
