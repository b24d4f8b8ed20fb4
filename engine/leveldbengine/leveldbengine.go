// Package leveldbengine implements an engine.Engine backed by
// github.com/syndtr/goleveldb, opened directly via leveldb.OpenFile.
package leveldbengine

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/coname/raftlog/engine"
)

// Engine is a disk-backed engine.Engine.
type Engine struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a leveldb database at dir.
func Open(dir string) (*Engine, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying leveldb handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	v, err := e.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *Engine) Set(key, value []byte) error {
	return e.db.Put(key, value, nil)
}

func (e *Engine) Delete(key []byte) error {
	return e.db.Delete(key, nil)
}

func (e *Engine) Scan(lo, hi []byte) (engine.Iterator, error) {
	it := e.db.NewIterator(&util.Range{Start: lo, Limit: hi}, nil)
	return &iterator{it: it}, nil
}

// Flush forces the write-ahead log to sync to stable storage. goleveldb has
// no standalone fsync call; writing an empty batch with Sync set achieves the
// same effect.
func (e *Engine) Flush() error {
	return e.db.Write(new(leveldb.Batch), &opt.WriteOptions{Sync: true})
}

func (e *Engine) Status() (engine.Status, error) {
	var count uint64
	it := e.db.NewIterator(nil, nil)
	for it.Next() {
		count++
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return engine.Status{}, err
	}

	sizes, err := e.db.SizeOf([]util.Range{{Start: nil, Limit: nil}})
	if err != nil {
		return engine.Status{}, err
	}

	return engine.Status{Name: "leveldb", KeyCount: count, DiskSize: sizes.Sum()}, nil
}

type iterator struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Error() error
		Release()
	}
}

func (it *iterator) Next() bool    { return it.it.Next() }
func (it *iterator) Key() []byte   { return cloneBytes(it.it.Key()) }
func (it *iterator) Value() []byte { return cloneBytes(it.it.Value()) }
func (it *iterator) Err() error    { return it.it.Error() }
func (it *iterator) Close() error  { it.it.Release(); return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

var _ engine.Engine = (*Engine)(nil)
