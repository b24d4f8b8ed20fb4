// Package memengine implements an in-memory engine.Engine, backed by an
// ordered btree.BTree so that Scan yields keys in ascending order without a
// sort on every call. It is meant for tests and for embedding a log in a
// single process without a disk-backed engine.
package memengine

import (
	"bytes"

	"github.com/google/btree"

	"github.com/coname/raftlog/engine"
)

const treeDegree = 32

// Engine is an in-memory engine.Engine. The zero value is not usable; use New.
type Engine struct {
	tree *btree.BTree
}

// New returns an empty in-memory engine.
func New() *Engine {
	return &Engine{tree: btree.New(treeDegree)}
}

type item struct {
	key, value []byte
}

func (a *item) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*item).key) < 0
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	found := e.tree.Get(&item{key: key})
	if found == nil {
		return nil, nil
	}
	v := found.(*item).value
	return append([]byte{}, v...), nil
}

func (e *Engine) Set(key, value []byte) error {
	e.tree.ReplaceOrInsert(&item{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	return nil
}

func (e *Engine) Delete(key []byte) error {
	e.tree.Delete(&item{key: key})
	return nil
}

func (e *Engine) Scan(lo, hi []byte) (engine.Iterator, error) {
	matched := make([]*item, 0)
	visit := func(i btree.Item) bool {
		it := i.(*item)
		if hi != nil && bytes.Compare(it.key, hi) >= 0 {
			return false
		}
		matched = append(matched, it)
		return true
	}
	if lo == nil {
		e.tree.Ascend(visit)
	} else {
		e.tree.AscendGreaterOrEqual(&item{key: lo}, visit)
	}
	return &iterator{items: matched}, nil
}

func (e *Engine) Flush() error {
	return nil
}

func (e *Engine) Status() (engine.Status, error) {
	return engine.Status{Name: "memengine", KeyCount: uint64(e.tree.Len())}, nil
}

type iterator struct {
	items []*item
	pos   int
}

func (it *iterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Key() []byte   { return it.items[it.pos-1].key }
func (it *iterator) Value() []byte { return it.items[it.pos-1].value }
func (it *iterator) Err() error    { return nil }
func (it *iterator) Close() error  { return nil }

var _ engine.Engine = (*Engine)(nil)
