package raftlog

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// termVote is the value stored under the TermVote key: the current term and,
// if any, the node this log has voted for in that term.
type termVote struct {
	Term uint64
	Vote *NodeID
}

const (
	termVoteFieldTerm protowire.Number = 1
	termVoteFieldVote protowire.Number = 2
)

func (tv termVote) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, termVoteFieldTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, tv.Term)
	if tv.Vote != nil {
		b = protowire.AppendTag(b, termVoteFieldVote, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*tv.Vote))
	}
	return b
}

func decodeTermVote(data []byte) (termVote, error) {
	var tv termVote
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return termVote{}, fmt.Errorf("raftlog: decode term/vote: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case termVoteFieldTerm:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return termVote{}, fmt.Errorf("raftlog: decode term/vote term: %w", protowire.ParseError(n))
			}
			tv.Term = v
			data = data[n:]
		case termVoteFieldVote:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return termVote{}, fmt.Errorf("raftlog: decode term/vote vote: %w", protowire.ParseError(n))
			}
			node := NodeID(v)
			tv.Vote = &node
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return termVote{}, fmt.Errorf("raftlog: decode term/vote: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return tv, nil
}

// commitIndexRecord is the value stored under the CommitIndex key.
type commitIndexRecord struct {
	Index Index
	Term  uint64
}

const (
	commitIndexFieldIndex protowire.Number = 1
	commitIndexFieldTerm  protowire.Number = 2
)

func (c commitIndexRecord) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, commitIndexFieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Index))
	b = protowire.AppendTag(b, commitIndexFieldTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, c.Term)
	return b
}

func decodeCommitIndexRecord(data []byte) (commitIndexRecord, error) {
	var c commitIndexRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return commitIndexRecord{}, fmt.Errorf("raftlog: decode commit index: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case commitIndexFieldIndex:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return commitIndexRecord{}, fmt.Errorf("raftlog: decode commit index: %w", protowire.ParseError(n))
			}
			c.Index = Index(v)
			data = data[n:]
		case commitIndexFieldTerm:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return commitIndexRecord{}, fmt.Errorf("raftlog: decode commit index term: %w", protowire.ParseError(n))
			}
			c.Term = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return commitIndexRecord{}, fmt.Errorf("raftlog: decode commit index: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return c, nil
}
