package raftlog

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Index is a 1-based position within the log. Index 0 is the sentinel value
// meaning "no entry".
type Index uint64

// NodeID identifies a Raft peer, e.g. the target of a vote.
type NodeID uint64

// Entry is one record in the replicated log: a position, the term in which
// it was proposed, and an optional state machine command. A nil Command
// denotes a no-op entry, used by a newly elected leader to commit entries
// from prior terms (Raft §5.4.2).
type Entry struct {
	Index   Index
	Term    uint64
	Command []byte
}

// Entries are encoded as a small protobuf-wire record (field 1 = index,
// field 2 = term, field 3 = command), using the low-level protowire
// primitives directly instead of generated .pb.go bindings: the record is
// fixed and small enough that hand-writing the three fields is simpler than
// maintaining a .proto file, while still keeping the on-disk format real
// protobuf wire format, consistent with the rest of the Raft ecosystem's
// entry encodings.
const (
	entryFieldIndex   protowire.Number = 1
	entryFieldTerm    protowire.Number = 2
	entryFieldCommand protowire.Number = 3
)

// encode serializes the entry to its on-disk representation.
func (e Entry) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, entryFieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Index))
	b = protowire.AppendTag(b, entryFieldTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Term)
	if e.Command != nil {
		b = protowire.AppendTag(b, entryFieldCommand, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Command)
	}
	return b
}

// decodeEntry deserializes an entry previously produced by Entry.encode.
func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	var sawIndex, sawTerm bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Entry{}, fmt.Errorf("raftlog: decode entry: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case entryFieldIndex:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Entry{}, fmt.Errorf("raftlog: decode entry index: %w", protowire.ParseError(n))
			}
			e.Index = Index(v)
			sawIndex = true
			data = data[n:]
		case entryFieldTerm:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Entry{}, fmt.Errorf("raftlog: decode entry term: %w", protowire.ParseError(n))
			}
			e.Term = v
			sawTerm = true
			data = data[n:]
		case entryFieldCommand:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Entry{}, fmt.Errorf("raftlog: decode entry command: %w", protowire.ParseError(n))
			}
			// A present field always decodes to a non-nil slice, so an empty
			// command stays distinct from a nil (no-op) one.
			e.Command = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Entry{}, fmt.Errorf("raftlog: decode entry: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !sawIndex || !sawTerm {
		return Entry{}, fmt.Errorf("raftlog: decode entry: missing index or term field")
	}
	return e, nil
}
