package raftlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coname/raftlog/engine"
	"github.com/coname/raftlog/engine/memengine"
)

// countingEngine wraps an engine.Engine and counts mutating calls, so tests
// can assert that an idempotent operation performed no writes.
type countingEngine struct {
	engine.Engine
	sets    int
	deletes int
}

func (c *countingEngine) Set(key, value []byte) error {
	c.sets++
	return c.Engine.Set(key, value)
}

func (c *countingEngine) Delete(key []byte) error {
	c.deletes++
	return c.Engine.Delete(key)
}

func newTestLog(t *testing.T) (*Log, *countingEngine) {
	t.Helper()
	eng := &countingEngine{Engine: memengine.New()}
	log, err := Open(eng)
	require.NoError(t, err)
	return log, eng
}

func node(id uint64) *NodeID {
	n := NodeID(id)
	return &n
}

func drain(t *testing.T, it *EntryIterator) []Entry {
	t.Helper()
	var entries []Entry
	for it.Next() {
		entries = append(entries, it.Entry())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return entries
}

// Basic append: set a term, append two entries, commit, and verify the
// cached last/commit index and stored entries.
func TestScenarioBasicAppend(t *testing.T) {
	log, _ := newTestLog(t)

	require.NoError(t, log.SetTermVote(1, nil))
	i1, err := log.Append([]byte("a"))
	require.NoError(t, err)
	i2, err := log.Append([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, Index(1), i1)
	require.Equal(t, Index(2), i2)

	_, err = log.Commit(2)
	require.NoError(t, err)

	last, lastTerm := log.LastIndex()
	require.Equal(t, Index(2), last)
	require.Equal(t, uint64(1), lastTerm)

	commit, commitTerm := log.CommitIndex()
	require.Equal(t, Index(2), commit)
	require.Equal(t, uint64(1), commitTerm)

	e1, err := log.Get(1)
	require.NoError(t, err)
	require.Equal(t, Entry{Index: 1, Term: 1, Command: []byte("a")}, *e1)

	e2, err := log.Get(2)
	require.NoError(t, err)
	require.Equal(t, Entry{Index: 2, Term: 1, Command: []byte("b")}, *e2)
}

// Follower splice extends the log with entries from a leader.
func TestScenarioFollowerSpliceExtends(t *testing.T) {
	log, _ := newTestLog(t)

	require.NoError(t, log.SetTermVote(2, nil))
	last, err := log.Splice([]Entry{
		{Index: 1, Term: 1, Command: []byte("")},
		{Index: 2, Term: 1, Command: []byte("x")},
	})
	require.NoError(t, err)
	require.Equal(t, Index(2), last)

	last, err = log.Splice([]Entry{{Index: 3, Term: 2, Command: []byte("y")}})
	require.NoError(t, err)
	require.Equal(t, Index(3), last)

	idx, term := log.LastIndex()
	require.Equal(t, Index(3), idx)
	require.Equal(t, uint64(2), term)
}

// Splicing a conflicting entry truncates the diverging tail and replaces
// it with the new entries.
func TestScenarioConflictTruncation(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(2, nil))
	_, err := log.Splice([]Entry{
		{Index: 1, Term: 1, Command: []byte("")},
		{Index: 2, Term: 1, Command: []byte("x")},
	})
	require.NoError(t, err)
	_, err = log.Splice([]Entry{{Index: 3, Term: 2, Command: []byte("y")}})
	require.NoError(t, err)

	last, err := log.Splice([]Entry{
		{Index: 2, Term: 2, Command: []byte("z")},
		{Index: 3, Term: 2, Command: []byte("w")},
	})
	require.NoError(t, err)
	require.Equal(t, Index(3), last)

	e1, err := log.Get(1)
	require.NoError(t, err)
	require.Equal(t, Entry{Index: 1, Term: 1, Command: []byte("")}, *e1)

	e2, err := log.Get(2)
	require.NoError(t, err)
	require.Equal(t, Entry{Index: 2, Term: 2, Command: []byte("z")}, *e2)

	e3, err := log.Get(3)
	require.NoError(t, err)
	require.Equal(t, Entry{Index: 3, Term: 2, Command: []byte("w")}, *e3)

	e4, err := log.Get(4)
	require.NoError(t, err)
	require.Nil(t, e4)
}

// Splicing an already-present prefix is idempotent and performs zero
// engine writes.
func TestScenarioIdempotentOverlap(t *testing.T) {
	log, counting := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	_, err := log.Append([]byte("a"))
	require.NoError(t, err)
	_, err = log.Append([]byte("b"))
	require.NoError(t, err)

	setsBefore, deletesBefore := counting.sets, counting.deletes

	last, err := log.Splice([]Entry{
		{Index: 1, Term: 1, Command: []byte("a")},
		{Index: 2, Term: 1, Command: []byte("b")},
	})
	require.NoError(t, err)
	require.Equal(t, Index(2), last)

	require.Equal(t, setsBefore, counting.sets, "splice of an already-present prefix must not write")
	require.Equal(t, deletesBefore, counting.deletes, "splice of an already-present prefix must not delete")
}

// Commit regression is a fatal contract violation.
func TestScenarioCommitRegressionPanics(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	_, err := log.Append([]byte("a"))
	require.NoError(t, err)
	_, err = log.Append([]byte("b"))
	require.NoError(t, err)
	_, err = log.Commit(2)
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = log.Commit(1)
	})
}

// Splicing a conflicting entry at or below the commit index is a fatal
// contract violation.
func TestScenarioSpliceBelowCommitPanics(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	_, err := log.Append([]byte("a"))
	require.NoError(t, err)
	_, err = log.Append([]byte("b"))
	require.NoError(t, err)
	_, err = log.Commit(2)
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = log.Splice([]Entry{{Index: 2, Term: 1, Command: []byte("different")}})
	})
}

// Term/vote writes always flush, even with fsync disabled for entries.
func TestScenarioTermVoteAlwaysFlushes(t *testing.T) {
	eng := &flushCountingEngine{Engine: memengine.New()}
	log, err := Open(eng, WithFsyncEnabled(false))
	require.NoError(t, err)

	require.NoError(t, log.SetTermVote(3, node(9)))
	require.Equal(t, 1, eng.flushes)
}

type flushCountingEngine struct {
	engine.Engine
	flushes int
}

func (f *flushCountingEngine) Flush() error {
	f.flushes++
	return f.Engine.Flush()
}

func TestSetTermVoteRejectsRegressionAndDoubleVote(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(2, node(1)))

	require.Panics(t, func() { _ = log.SetTermVote(1, node(1)) })
	require.Panics(t, func() { _ = log.SetTermVote(2, node(2)) })

	// Re-voting for the same node in the same term is a no-op, not an error.
	require.NoError(t, log.SetTermVote(2, node(1)))

	// A new term may record a different vote.
	require.NoError(t, log.SetTermVote(3, node(2)))
}

func TestAppendRequiresNonZeroTerm(t *testing.T) {
	log, _ := newTestLog(t)
	require.Panics(t, func() { _, _ = log.Append([]byte("x")) })
}

func TestHasFastPaths(t *testing.T) {
	log, _ := newTestLog(t)
	ok, err := log.Has(0, 1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, log.SetTermVote(1, nil))
	_, err = log.Append([]byte("a"))
	require.NoError(t, err)

	ok, err = log.Has(1, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = log.Has(1, 2)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = log.Has(5, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScanApplyRange(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	for _, cmd := range []string{"a", "b", "c"} {
		_, err := log.Append([]byte(cmd))
		require.NoError(t, err)
	}
	_, err := log.Commit(2)
	require.NoError(t, err)

	it, err := log.ScanApply(0)
	require.NoError(t, err)
	entries := drain(t, it)
	require.Len(t, entries, 2)
	require.Equal(t, Index(1), entries[0].Index)
	require.Equal(t, Index(2), entries[1].Index)

	it, err = log.ScanApply(2)
	require.NoError(t, err)
	require.Empty(t, drain(t, it))

	it, err = log.ScanApply(5)
	require.NoError(t, err)
	require.Empty(t, drain(t, it))
}

func TestScanIteratorBlocksMutationUntilClosed(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	_, err := log.Append([]byte("a"))
	require.NoError(t, err)

	it, err := log.Scan(MinIndex, MaxIndex)
	require.NoError(t, err)

	require.Panics(t, func() { _, _ = log.Append([]byte("b")) })

	require.NoError(t, it.Close())
	_, err = log.Append([]byte("b"))
	require.NoError(t, err)
}

// Recovery fidelity: reopening a log over the same engine reproduces the
// same cached state and entry contents.
func TestPropertyRecoveryFidelity(t *testing.T) {
	eng := memengine.New()
	log, err := Open(eng)
	require.NoError(t, err)

	require.NoError(t, log.SetTermVote(3, node(5)))
	_, err = log.Append([]byte("a"))
	require.NoError(t, err)
	_, err = log.Append([]byte("b"))
	require.NoError(t, err)
	_, err = log.Commit(1)
	require.NoError(t, err)

	reopened, err := Open(eng)
	require.NoError(t, err)

	wantTerm, wantVote := log.TermVote()
	gotTerm, gotVote := reopened.TermVote()
	require.Equal(t, wantTerm, gotTerm)
	require.Equal(t, *wantVote, *gotVote)

	wantLast, wantLastTerm := log.LastIndex()
	gotLast, gotLastTerm := reopened.LastIndex()
	require.Equal(t, wantLast, gotLast)
	require.Equal(t, wantLastTerm, gotLastTerm)

	wantCommit, wantCommitTerm := log.CommitIndex()
	gotCommit, gotCommitTerm := reopened.CommitIndex()
	require.Equal(t, wantCommit, gotCommit)
	require.Equal(t, wantCommitTerm, gotCommitTerm)

	for i := Index(1); i <= wantLast; i++ {
		want, err := log.Get(i)
		require.NoError(t, err)
		got, err := reopened.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// Append monotonicity: each append lands at lastIndex+1, at the current
// term.
func TestPropertyAppendMonotonicity(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.SetTermVote(4, nil))

	prevLast, _ := log.LastIndex()
	index, err := log.Append([]byte("cmd"))
	require.NoError(t, err)
	require.Equal(t, prevLast+1, index)

	entry, err := log.Get(index)
	require.NoError(t, err)
	require.Equal(t, uint64(4), entry.Term)
	require.Equal(t, []byte("cmd"), entry.Command)
}

// Commit immutability: splicing at or below the commit index never writes
// and always panics.
func TestPropertyCommitImmutability(t *testing.T) {
	log, counting := newTestLog(t)
	require.NoError(t, log.SetTermVote(1, nil))
	_, err := log.Append([]byte("a"))
	require.NoError(t, err)
	_, err = log.Commit(1)
	require.NoError(t, err)

	setsBefore, deletesBefore := counting.sets, counting.deletes
	require.Panics(t, func() {
		_, _ = log.Splice([]Entry{{Index: 1, Term: 1, Command: []byte("other")}})
	})
	require.Equal(t, setsBefore, counting.sets)
	require.Equal(t, deletesBefore, counting.deletes)
}
