// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package db

import (
	"fmt"
	"path"
	"strconv"

	"github.com/dgraph-io/badger"
)

var blog = dlog.New("submodule", "badger")

func init() {
	dbCreator := func(name string, dir string, cache int) (DB, error) {
		return NewGoBadgerDB(name, dir, cache)
	}
	registerDBCreator(GoBadgerDBBackendStr, dbCreator, false)
}

//GoBadgerDB db
type GoBadgerDB struct {
	db *badger.DB
}

//NewGoBadgerDB new
func NewGoBadgerDB(name string, dir string, cache int) (*GoBadgerDB, error) {
	opts := badger.DefaultOptions(path.Join(dir, name+".db"))
	opts.Logger = badgerLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &GoBadgerDB{db: db}, nil
}

//Get get
func (db *GoBadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFoundInDb
	}
	if err != nil {
		blog.Error("Get", "error", err)
		return nil, err
	}
	return val, nil
}

//Set set
func (db *GoBadgerDB) Set(key []byte, value []byte) error {
	err := db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		blog.Error("Set", "error", err)
	}
	return err
}

//SetSync 同 Set, 同步由 badger 的 SyncWrites 选项决定
func (db *GoBadgerDB) SetSync(key []byte, value []byte) error {
	return db.Set(key, value)
}

//Delete 删除
func (db *GoBadgerDB) Delete(key []byte) error {
	return db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

//DeleteSync 同 Delete
func (db *GoBadgerDB) DeleteSync(key []byte) error {
	return db.Delete(key)
}

//Close 关闭
func (db *GoBadgerDB) Close() {
	if err := db.db.Close(); err != nil {
		blog.Error("Close", "error", err)
	}
}

//Stats 统计信息
func (db *GoBadgerDB) Stats() map[string]string {
	lsm, vlog := db.db.Size()
	return map[string]string{
		"badger.lsm":  strconv.FormatInt(lsm, 10),
		"badger.vlog": strconv.FormatInt(vlog, 10),
	}
}

//Iterator 前缀迭代, 在只读事务中进行
func (db *GoBadgerDB) Iterator(prefix []byte) Iterator {
	txn := db.db.NewTransaction(false)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	return &badgerIt{txn: txn, it: it, prefix: cloneByte(prefix)}
}

//NewBatch 所有操作在 Write 时放在同一个事务中提交
func (db *GoBadgerDB) NewBatch(sync bool) Batch {
	return &badgerBatch{db: db}
}

type badgerIt struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	err     error
}

func (it *badgerIt) Next() bool {
	if !it.started {
		it.it.Seek(it.prefix)
		it.started = true
	} else {
		it.it.Next()
	}
	return it.it.ValidForPrefix(it.prefix)
}

func (it *badgerIt) Key() []byte {
	return it.it.Item().KeyCopy(nil)
}

func (it *badgerIt) Value() []byte {
	v, err := it.it.Item().ValueCopy(nil)
	if err != nil {
		it.err = err
	}
	return v
}

func (it *badgerIt) Error() error { return it.err }

func (it *badgerIt) Close() {
	it.it.Close()
	it.txn.Discard()
}

type badgerOp struct {
	key    []byte
	value  []byte
	delete bool
}

type badgerBatch struct {
	db   *GoBadgerDB
	ops  []badgerOp
	size int
}

func (b *badgerBatch) Set(key, value []byte) {
	b.ops = append(b.ops, badgerOp{key: cloneByte(key), value: cloneByte(value)})
	b.size += len(value)
}

func (b *badgerBatch) Delete(key []byte) {
	b.ops = append(b.ops, badgerOp{key: cloneByte(key), delete: true})
	b.size++
}

func (b *badgerBatch) Write() error {
	err := b.db.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		blog.Error("Write", "ops", len(b.ops), "error", err)
	}
	return err
}

func (b *badgerBatch) ValueSize() int {
	return b.size
}

func (b *badgerBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// badger 内部日志转到 log15
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) { blog.Error(fmt.Sprintf(f, v...)) }
func (badgerLogger) Warningf(f string, v ...interface{}) { blog.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(f string, v ...interface{}) { blog.Debug(fmt.Sprintf(f, v...)) }
func (badgerLogger) Debugf(f string, v ...interface{}) { blog.Debug(fmt.Sprintf(f, v...)) }
