// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package db

import (
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var mlog = dlog.New("submodule", "memdb")

// memdb 应该无需区分同步与异步操作

func init() {
	dbCreator := func(name string, dir string, cache int) (DB, error) {
		return NewGoMemDB(name, dir, cache)
	}
	registerDBCreator(MemDBBackendStr, dbCreator, false)
}

//GoMemDB db
type GoMemDB struct {
	db *memdb.DB
	// batch 写入时持有写锁, 读者不会看到写了一半的 batch
	lock sync.RWMutex
}

//NewGoMemDB new
func NewGoMemDB(name string, dir string, cache int) (*GoMemDB, error) {
	// memdb 不需要创建文件
	return &GoMemDB{db: memdb.New(comparer.DefaultComparer, 0)}, nil
}

//Get get
func (db *GoMemDB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	v, err := db.db.Get(key)
	if err != nil {
		return nil, ErrNotFoundInDb
	}
	return cloneByte(v), nil
}

//Set set
func (db *GoMemDB) Set(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	err := db.db.Put(key, value)
	if err != nil {
		mlog.Error("Set", "error", err)
	}
	return err
}

//SetSync 同 Set
func (db *GoMemDB) SetSync(key []byte, value []byte) error {
	return db.Set(key, value)
}

//Delete 删除
func (db *GoMemDB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	err := db.db.Delete(key)
	if err != nil && err != memdb.ErrNotFound {
		return err
	}
	return nil
}

//DeleteSync 同 Delete
func (db *GoMemDB) DeleteSync(key []byte) error {
	return db.Delete(key)
}

//Close 关闭
func (db *GoMemDB) Close() {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.db.Reset()
}

//Stats 统计信息
func (db *GoMemDB) Stats() map[string]string {
	return map[string]string{"memdb.len": strconv.Itoa(db.db.Len()), "memdb.size": strconv.Itoa(db.db.Size())}
}

//Iterator 前缀迭代, 迭代的是创建时的快照
func (db *GoMemDB) Iterator(prefix []byte) Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	var r *util.Range
	if len(prefix) > 0 {
		r = util.BytesPrefix(prefix)
	}
	it := db.db.NewIterator(r)
	defer it.Release()
	snap := &memIt{index: -1}
	for it.Next() {
		snap.keys = append(snap.keys, cloneByte(it.Key()))
		snap.values = append(snap.values, cloneByte(it.Value()))
	}
	snap.err = it.Error()
	return snap
}

//NewBatch new batch
func (db *GoMemDB) NewBatch(sync bool) Batch {
	return &memBatch{db: db, batch: new(leveldb.Batch)}
}

type memIt struct {
	keys   [][]byte
	values [][]byte
	index  int
	err    error
}

func (it *memIt) Next() bool {
	if it.index+1 >= len(it.keys) {
		it.index = len(it.keys)
		return false
	}
	it.index++
	return true
}

func (it *memIt) valid() bool {
	return it.index >= 0 && it.index < len(it.keys)
}

func (it *memIt) Key() []byte {
	if !it.valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *memIt) Value() []byte {
	if !it.valid() {
		return nil
	}
	return it.values[it.index]
}

func (it *memIt) Error() error { return it.err }
func (it *memIt) Close() {}

type memBatch struct {
	db    *GoMemDB
	batch *leveldb.Batch
	size  int
}

func (b *memBatch) Set(key, value []byte) {
	b.batch.Put(key, value)
	b.size += len(value)
}

func (b *memBatch) Delete(key []byte) {
	b.batch.Delete(key)
	b.size++
}

func (b *memBatch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()
	r := &memReplay{db: b.db.db}
	if err := b.batch.Replay(r); err != nil {
		return err
	}
	return r.err
}

func (b *memBatch) ValueSize() int {
	return b.size
}

func (b *memBatch) Reset() {
	b.batch.Reset()
	b.size = 0
}

type memReplay struct {
	db  *memdb.DB
	err error
}

func (r *memReplay) Put(key, value []byte) {
	if r.err == nil {
		r.err = r.db.Put(key, value)
	}
}

func (r *memReplay) Delete(key []byte) {
	if r.err != nil {
		return
	}
	if err := r.db.Delete(key); err != nil && err != memdb.ErrNotFound {
		r.err = err
	}
}
