// Package raftlog implements the replicated log subsystem of a Raft
// consensus node: the durable, append-mostly sequence of state machine
// commands that Raft replicates across nodes. It persists entries, the
// current term and vote, and the commit index onto an abstract ordered
// key-value engine (package engine), and exposes the small synchronous API a
// Raft core needs to append as leader, splice incoming entries as follower,
// commit a prefix, and scan ranges.
//
// The log is single-owner and not safe for concurrent use: one Raft node
// drives one *Log via exclusive access, serializing calls externally.
package raftlog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/coname/raftlog/engine"
)

// Log is the façade the Raft core drives. The zero value is not usable; use
// Open.
type Log struct {
	engine engine.Engine
	logger *zap.Logger

	term uint64
	vote *NodeID

	lastIndex Index
	lastTerm  uint64

	commitIndex Index
	commitTerm  uint64

	fsyncEnabled bool

	// openIterator tracks the single outstanding EntryIterator borrowed from
	// this Log, if any. Mutating calls panic while it is non-nil.
	openIterator *EntryIterator
}

// MinIndex and MaxIndex bound the full range of valid log indexes; pass them
// to Scan for an unbounded range endpoint.
const (
	MinIndex Index = 1
	MaxIndex Index = Index(^uint64(0))
)

// Open binds a Log to engine and recovers its cached volatile state:
//
//  1. load (term, vote) from the term/vote key, defaulting to (0, none);
//  2. find the last stored entry by scanning the entry key family and taking
//     the last element, defaulting last_index/last_term to (0, 0);
//  3. load (commit_index, commit_term), defaulting to (0, 0);
//  4. enable fsync by default.
//
// Open performs no integrity scan beyond taking the last entry; the engine
// is trusted for the durability of whatever it returns.
func Open(eng engine.Engine, opts ...Option) (*Log, error) {
	l := &Log{
		engine:       eng,
		logger:       zap.NewNop(),
		fsyncEnabled: true,
	}
	for _, opt := range opts {
		opt(l)
	}

	tvBytes, err := eng.Get(encodeTermVoteKey())
	if err != nil {
		return nil, storageErr("open: get term/vote", err)
	}
	if tvBytes != nil {
		tv, err := decodeTermVote(tvBytes)
		if err != nil {
			return nil, storageErr("open: decode term/vote", err)
		}
		l.term = tv.Term
		l.vote = tv.Vote
	}

	last, err := lastEntry(eng)
	if err != nil {
		return nil, storageErr("open: find last entry", err)
	}
	if last != nil {
		l.lastIndex = last.Index
		l.lastTerm = last.Term
	}

	ciBytes, err := eng.Get(encodeCommitIndexKey())
	if err != nil {
		return nil, storageErr("open: get commit index", err)
	}
	if ciBytes != nil {
		ci, err := decodeCommitIndexRecord(ciBytes)
		if err != nil {
			return nil, storageErr("open: decode commit index", err)
		}
		l.commitIndex = ci.Index
		l.commitTerm = ci.Term
	}

	l.logger.Debug("raftlog recovered",
		zap.Uint64("term", l.term),
		zap.Uint64("last_index", uint64(l.lastIndex)),
		zap.Uint64("last_term", l.lastTerm),
		zap.Uint64("commit_index", uint64(l.commitIndex)),
		zap.Uint64("commit_term", l.commitTerm),
	)
	return l, nil
}

// lastEntry scans the whole entry key family and returns the last element,
// or nil if the log is empty.
func lastEntry(eng engine.Engine) (*Entry, error) {
	it, err := eng.Scan(minEntryKey(), maxEntryKeyExclusive())
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var last *Entry
	for it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return nil, err
		}
		last = &e
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return last, nil
}

func (l *Log) requireNoOpenIterator(op string) {
	if l.openIterator != nil {
		panic(fmt.Sprintf("raftlog: %s: a scan iterator is still open", op))
	}
}

func (l *Log) releaseIterator(it *EntryIterator) {
	if l.openIterator == it {
		l.openIterator = nil
	}
}

// SetFsyncEnabled toggles the fsync tunable at runtime. See WithFsyncEnabled
// for the durability tradeoff this controls.
func (l *Log) SetFsyncEnabled(enabled bool) {
	l.fsyncEnabled = enabled
}

// TermVote returns the current term and, if any, the node voted for in it.
func (l *Log) TermVote() (uint64, *NodeID) {
	return l.term, l.vote
}

// LastIndex returns the index and term of the last stored entry; (0, 0)
// means the log is empty.
func (l *Log) LastIndex() (Index, uint64) {
	return l.lastIndex, l.lastTerm
}

// CommitIndex returns the index and term of the highest committed entry.
func (l *Log) CommitIndex() (Index, uint64) {
	return l.commitIndex, l.commitTerm
}

// Status forwards to the underlying engine's status.
func (l *Log) Status() (engine.Status, error) {
	s, err := l.engine.Status()
	if err != nil {
		return engine.Status{}, storageErr("status", err)
	}
	return s, nil
}

// SetTermVote records the current term and, if any, the node voted for in
// it. It panics if term regresses, or if it would change an existing vote
// within the same term (Raft votes at most once per term).
//
// The write is always flushed, regardless of the fsync tunable: a lost vote
// can cause two leaders to be elected in the same term (split brain), so
// durability here is mandatory rather than a performance tradeoff.
func (l *Log) SetTermVote(term uint64, vote *NodeID) error {
	l.requireNoOpenIterator("SetTermVote")

	if term == 0 {
		panic("raftlog: SetTermVote: can't set term 0")
	}
	if term < l.term {
		panic(fmt.Sprintf("raftlog: SetTermVote: term regression %d -> %d", l.term, term))
	}
	if term == l.term && l.vote != nil && !sameVote(vote, l.vote) {
		panic(fmt.Sprintf("raftlog: SetTermVote: can't change vote in term %d", term))
	}

	if term == l.term && sameVote(vote, l.vote) {
		return nil
	}

	tv := termVote{Term: term, Vote: vote}
	if err := l.engine.Set(encodeTermVoteKey(), tv.encode()); err != nil {
		return storageErr("SetTermVote: set", err)
	}
	if err := l.engine.Flush(); err != nil {
		return storageErr("SetTermVote: flush", err)
	}
	l.term = term
	l.vote = vote
	return nil
}

func sameVote(a, b *NodeID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Append writes command as a new entry at the current term and returns its
// index. It panics if the current term is 0 (no term has been set yet).
func (l *Log) Append(command []byte) (Index, error) {
	l.requireNoOpenIterator("Append")

	if l.term == 0 {
		panic("raftlog: Append: can't append an entry in term 0")
	}
	entry := Entry{Index: l.lastIndex + 1, Term: l.term, Command: command}
	if err := l.engine.Set(encodeEntryKey(entry.Index), entry.encode()); err != nil {
		return 0, storageErr("Append: set", err)
	}
	if l.fsyncEnabled {
		if err := l.engine.Flush(); err != nil {
			return 0, storageErr("Append: flush", err)
		}
	}
	l.lastIndex = entry.Index
	l.lastTerm = entry.Term
	return entry.Index, nil
}

// Commit advances the commit index to index, which must name an existing
// entry at or after the current commit index. Regressing the commit index
// is a programmer error and panics.
func (l *Log) Commit(index Index) (Index, error) {
	l.requireNoOpenIterator("Commit")

	if index < l.commitIndex {
		panic(fmt.Sprintf("raftlog: Commit: commit index regression %d -> %d", l.commitIndex, index))
	}
	if index == l.commitIndex {
		return index, nil
	}

	entry, err := l.get(index)
	if err != nil {
		return 0, storageErr("Commit: get", err)
	}
	if entry == nil {
		panic(fmt.Sprintf("raftlog: Commit: index %d does not exist", index))
	}

	rec := commitIndexRecord{Index: index, Term: entry.Term}
	// The commit index is not fsynced: if lost on restart, it can be safely
	// re-derived from the quorum, since the entries themselves are durable.
	if err := l.engine.Set(encodeCommitIndexKey(), rec.encode()); err != nil {
		return 0, storageErr("Commit: set", err)
	}
	l.commitIndex = index
	l.commitTerm = entry.Term
	return index, nil
}

// Get returns the entry at index, or nil if absent.
func (l *Log) Get(index Index) (*Entry, error) {
	l.requireNoOpenIterator("Get")
	entry, err := l.get(index)
	if err != nil {
		return nil, storageErr("Get", err)
	}
	return entry, nil
}

func (l *Log) get(index Index) (*Entry, error) {
	v, err := l.engine.Get(encodeEntryKey(index))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	e, err := decodeEntry(v)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Has reports whether the log contains an entry with exactly this
// (index, term) pair.
func (l *Log) Has(index Index, term uint64) (bool, error) {
	l.requireNoOpenIterator("Has")

	if index == 0 || index > l.lastIndex {
		return false, nil
	}
	if index == l.lastIndex && term == l.lastTerm {
		return true, nil
	}
	entry, err := l.get(index)
	if err != nil {
		return false, storageErr("Has", err)
	}
	return entry != nil && entry.Term == term, nil
}

// Scan returns an iterator over entries whose index falls in [lo, hi]
// (inclusive on both ends). Use MinIndex/MaxIndex for an unbounded endpoint.
// The returned iterator borrows the Log; no mutating call may run until it
// is Closed.
func (l *Log) Scan(lo, hi Index) (*EntryIterator, error) {
	l.requireNoOpenIterator("Scan")

	if lo > hi {
		return l.emptyIterator(), nil
	}

	upper := maxEntryKeyExclusive()
	if hi != MaxIndex {
		upper = encodeEntryKey(hi + 1)
	}
	inner, err := l.engine.Scan(encodeEntryKey(lo), upper)
	if err != nil {
		return nil, storageErr("Scan", err)
	}
	it := newEntryIterator(l, inner)
	l.openIterator = it
	return it, nil
}

// ScanApply returns an iterator over entries in (appliedIndex, commitIndex].
// If appliedIndex >= commitIndex, it returns an empty iterator. The caller
// (the state machine applier) owns tracking its own applied index; the log
// does not persist it.
func (l *Log) ScanApply(appliedIndex Index) (*EntryIterator, error) {
	l.requireNoOpenIterator("ScanApply")
	if appliedIndex >= l.commitIndex {
		return l.emptyIterator(), nil
	}
	return l.Scan(appliedIndex+1, l.commitIndex)
}

func (l *Log) emptyIterator() *EntryIterator {
	it := newEntryIterator(l, emptyIterator{})
	l.openIterator = it
	return it
}

type emptyIterator struct{}

func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }
func (emptyIterator) Err() error    { return nil }
func (emptyIterator) Close() error  { return nil }

// Splice is the follower-side reconciliation operation: it accepts a
// (possibly empty) run of entries from a leader and merges them into the
// local log, truncating any diverging tail, and returns the resulting last
// index.
//
// entries must be well-formed (fatal otherwise): contiguous indexes,
// non-decreasing terms, a first entry with index > 0 and term > 0, a last
// entry with term <= the current term, and (if an entry already exists at
// first.Index-1) a first term at or above that base entry's term — or, if
// there is no such base entry, first.Index must be 1.
func (l *Log) Splice(entries []Entry) (Index, error) {
	l.requireNoOpenIterator("Splice")

	if len(entries) == 0 {
		return l.lastIndex, nil
	}
	first, last := entries[0], entries[len(entries)-1]

	if first.Index == 0 || first.Term == 0 {
		panic("raftlog: Splice: first entry has index or term 0")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Index != entries[i-1].Index+1 {
			panic(fmt.Sprintf("raftlog: Splice: entries not contiguous at index %d", entries[i].Index))
		}
		if entries[i].Term < entries[i-1].Term {
			panic(fmt.Sprintf("raftlog: Splice: entries term regression at index %d", entries[i].Index))
		}
	}
	if last.Term > l.term {
		panic(fmt.Sprintf("raftlog: Splice: term %d beyond current term %d", last.Term, l.term))
	}

	base, err := l.get(first.Index - 1)
	if err != nil {
		return 0, storageErr("Splice: get base", err)
	}
	switch {
	case base != nil && first.Term < base.Term:
		panic(fmt.Sprintf("raftlog: Splice: term regression %d -> %d", base.Term, first.Term))
	case base != nil:
		// ok, connects to existing log
	case first.Index == 1:
		// ok, splice starts the log
	default:
		panic(fmt.Sprintf("raftlog: Splice: first index %d must touch existing log", first.Index))
	}

	// Skip entries already present with a matching (index, term); stop at
	// the first conflict or once the input is exhausted.
	remaining := entries
	existing, err := l.Scan(first.Index, last.Index)
	if err != nil {
		return 0, err
	}
	for existing.Next() {
		got := existing.Entry()
		if got.Index != remaining[0].Index {
			panic(fmt.Sprintf("raftlog: Splice: index mismatch at %d", got.Index))
		}
		if got.Term != remaining[0].Term {
			break
		}
		if !bytesEqual(got.Command, remaining[0].Command) {
			existing.Close()
			panic(fmt.Sprintf("raftlog: Splice: command mismatch at index %d", got.Index))
		}
		remaining = remaining[1:]
		if len(remaining) == 0 {
			break
		}
	}
	if err := existing.Err(); err != nil {
		existing.Close()
		return 0, err
	}
	existing.Close()

	if len(remaining) == 0 {
		return l.lastIndex, nil
	}

	if remaining[0].Index <= l.commitIndex {
		panic(fmt.Sprintf("raftlog: Splice: spliced entries below commit index %d", l.commitIndex))
	}

	for _, entry := range remaining {
		if err := l.engine.Set(encodeEntryKey(entry.Index), entry.encode()); err != nil {
			return 0, storageErr("Splice: set", err)
		}
	}
	for index := last.Index + 1; index <= l.lastIndex; index++ {
		if err := l.engine.Delete(encodeEntryKey(index)); err != nil {
			return 0, storageErr("Splice: delete", err)
		}
	}
	if l.fsyncEnabled {
		if err := l.engine.Flush(); err != nil {
			return 0, storageErr("Splice: flush", err)
		}
	}

	l.lastIndex = last.Index
	l.lastTerm = last.Term
	l.logger.Debug("raftlog spliced",
		zap.Uint64("from", uint64(remaining[0].Index)),
		zap.Uint64("to", uint64(last.Index)),
	)
	return l.lastIndex, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
