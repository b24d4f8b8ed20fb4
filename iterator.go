package raftlog

import "github.com/coname/raftlog/engine"

// EntryIterator is a lazy sequence of log entries produced by a bounded scan
// over the entry key family, in ascending index order. Each step either
// decodes to an Entry or surfaces a storage/decode error that terminates the
// sequence (Err() becomes non-nil and Next() returns false from then on).
//
// An EntryIterator borrows its owning *Log for its lifetime: the Log is not
// safe to mutate (Append, Splice, Commit, SetTermVote) until the iterator is
// Closed. This mirrors the borrow discipline the Rust original enforces
// statically; Go has no borrow checker, so *Log enforces it dynamically by
// panicking if a mutating call is attempted while an iterator is open.
type EntryIterator struct {
	log   *Log
	inner engine.Iterator
	cur   Entry
	err   error
	done  bool
}

func newEntryIterator(log *Log, inner engine.Iterator) *EntryIterator {
	return &EntryIterator{log: log, inner: inner}
}

// Next advances to the next entry and reports whether one was found. It must
// be called before the first Entry()/Err() access.
func (it *EntryIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if !it.inner.Next() {
		if err := it.inner.Err(); err != nil {
			it.err = storageErr("scan", err)
		}
		it.done = true
		return false
	}
	entry, err := decodeEntry(it.inner.Value())
	if err != nil {
		it.err = storageErr("scan", err)
		it.done = true
		return false
	}
	it.cur = entry
	return true
}

// Entry returns the entry at the current position. Valid only after Next
// returns true.
func (it *EntryIterator) Entry() Entry {
	return it.cur
}

// Err returns the first error encountered, if any. Should be checked once
// Next returns false.
func (it *EntryIterator) Err() error {
	return it.err
}

// Close releases the iterator and re-permits mutation of the owning Log.
// Safe to call more than once.
func (it *EntryIterator) Close() error {
	if it.log != nil {
		it.log.releaseIterator(it)
		it.log = nil
	}
	if it.inner == nil {
		return nil
	}
	err := it.inner.Close()
	it.inner = nil
	it.done = true
	return err
}
