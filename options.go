package raftlog

import "go.uber.org/zap"

// Option configures a Log at Open time. Options follow the functional-options
// shape used throughout the wider Raft ecosystem for library-style
// constructors rather than a file/env config loader: the log is an embedded
// library, not a standalone daemon, so its configuration surface is a
// handful of constructor knobs.
type Option func(*Log)

// WithFsyncEnabled sets the initial value of the fsync tunable (default
// true). Disabling it weakens durability: a crash may lose recently appended
// or spliced entries, and if an entry already reported committed to a quorum
// is then lost locally, the state machine can diverge. It is provided for
// benchmarking, not for production use.
func WithFsyncEnabled(enabled bool) Option {
	return func(l *Log) { l.fsyncEnabled = enabled }
}

// WithLogger attaches a zap logger used for recovery and splice
// diagnostics. Invariant violations still panic regardless of the logger;
// this only controls diagnostic visibility, never control flow.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}
