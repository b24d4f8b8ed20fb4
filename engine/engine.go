// Package engine defines the abstract ordered key-value storage contract that
// the raftlog façade is built on. The log depends only on this interface; it
// never knows whether entries live in memory or on disk.
package engine

// Engine is an ordered, byte-keyed, byte-valued store. Keys sort in ascending
// byte order. Implementations must be safe for use by a single goroutine at a
// time; the log above does not share an Engine across concurrent callers.
type Engine interface {
	// Get returns the value for key, or (nil, nil) if key is absent.
	Get(key []byte) ([]byte, error)

	// Set writes key=value, replacing any existing value.
	Set(key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// Scan returns an iterator over all keys k with lo <= k < hi, in
	// ascending order. A nil lo/hi bound is unbounded on that side.
	Scan(lo, hi []byte) (Iterator, error)

	// Flush durably persists all prior writes (fsync semantics).
	Flush() error

	// Status reports engine-level diagnostics.
	Status() (Status, error)
}

// Iterator is a lazy, fail-able cursor over (key, value) pairs in ascending
// key order. Callers must call Close when done, and must not call any
// mutating Engine method while an Iterator from that Engine is still open.
type Iterator interface {
	// Next advances to the next pair and reports whether one was found.
	// It must be called once before the first Key/Value access.
	Next() bool

	// Key returns the current key. Valid only after Next returns true.
	Key() []byte

	// Value returns the current value. Valid only after Next returns true.
	Value() []byte

	// Err returns the first error encountered during iteration, if any.
	// Callers should check Err after Next returns false.
	Err() error

	// Close releases resources held by the iterator.
	Close() error
}

// Status reports a snapshot of engine-level diagnostics, surfaced to callers
// through Log.Status and the raftlog prometheus collector.
type Status struct {
	// Name identifies the engine implementation (e.g. "memengine", "leveldb").
	Name string
	// KeyCount is the number of live keys in the engine.
	KeyCount uint64
	// DiskSize is the approximate on-disk size in bytes, or 0 for
	// implementations with no persistent footprint.
	DiskSize int64
}
