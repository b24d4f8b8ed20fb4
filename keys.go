package raftlog

import "encoding/binary"

// The log keeps three disjoint key families in one keyspace:
//
//   - entry keys:       prefix 'e' + big-endian uint64 index
//   - the term/vote key: prefix 't' (singleton)
//   - the commit index key: prefix 'c' (singleton)
//
// The prefix byte keeps the families from interleaving in sort order, and the
// big-endian index encoding keeps entry keys sorted by index ascending, so a
// bounded Scan over the entry family returns entries in index order. This is
// plain encoding/binary rather than a third-party codec: the key space is a
// single fixed-width integer plus a one-byte tag, which buys nothing from a
// general-purpose serialization library.
const (
	entryKeyPrefix       byte = 'e'
	termVoteKeyPrefix    byte = 't'
	commitIndexKeyPrefix byte = 'c'
)

// entryKeyLen is the encoded length of an entry key: 1 tag byte + 8 index bytes.
const entryKeyLen = 1 + 8

// encodeEntryKey encodes the primary log key for the given index.
func encodeEntryKey(index Index) []byte {
	key := make([]byte, entryKeyLen)
	key[0] = entryKeyPrefix
	binary.BigEndian.PutUint64(key[1:], uint64(index))
	return key
}

// decodeEntryKey decodes an entry key back into its index. It panics if key
// is not a well-formed entry key, since callers only ever decode keys this
// package itself produced.
func decodeEntryKey(key []byte) Index {
	if len(key) != entryKeyLen || key[0] != entryKeyPrefix {
		panic("raftlog: malformed entry key")
	}
	return Index(binary.BigEndian.Uint64(key[1:]))
}

// isEntryKey reports whether key belongs to the entry family.
func isEntryKey(key []byte) bool {
	return len(key) == entryKeyLen && key[0] == entryKeyPrefix
}

func encodeTermVoteKey() []byte {
	return []byte{termVoteKeyPrefix}
}

func encodeCommitIndexKey() []byte {
	return []byte{commitIndexKeyPrefix}
}

// minEntryKey and maxEntryKeyExclusive bound the entire entry family:
// minEntryKey is Entry(0) and maxEntryKeyExclusive sorts just past
// Entry(maxIndex), suitable as an exclusive upper Scan bound.
func minEntryKey() []byte {
	return encodeEntryKey(0)
}

func maxEntryKeyExclusive() []byte {
	// Index is a uint64, so there is no "index+1" past encodeEntryKey(maxUint64).
	// A key one byte longer, sharing encodeEntryKey(maxUint64) as a prefix, sorts
	// strictly after it (and after every other entry key), giving an exclusive
	// upper Scan bound that covers the whole entry family.
	key := make([]byte, entryKeyLen+1)
	key[0] = entryKeyPrefix
	for i := 1; i < entryKeyLen; i++ {
		key[i] = 0xff
	}
	return key
}
