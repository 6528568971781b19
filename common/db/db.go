// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db 账户存储使用的 kv 接口以及各个后端实现
package db

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/inconshreveable/log15"
)

var dlog = log.New("module", "db")

//ErrNotFoundInDb 数据库中没有找到 key
var ErrNotFoundInDb = errors.New("ErrNotFoundInDb")

//DB kv 数据库接口
type DB interface {
	Get([]byte) ([]byte, error)
	Set([]byte, []byte) error
	SetSync([]byte, []byte) error
	Delete([]byte) error
	DeleteSync([]byte) error
	Close()
	NewBatch(sync bool) Batch
	//按字节序遍历以 prefix 开头的 key
	Iterator(prefix []byte) Iterator
	Stats() map[string]string
}

//Batch 批量写, Write 之后对读者原子可见
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Write() error
	ValueSize() int
	Reset()
}

//Iterator 迭代器, 使用完之后必须 Close
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close()
}

//后端名称
const (
	LevelDBBackendStr    = "leveldb" // legacy, defaults to goleveldb.
	GoLevelDBBackendStr  = "goleveldb"
	MemDBBackendStr      = "memdb"
	GoBadgerDBBackendStr = "gobadgerdb"
)

type dbCreator func(name string, dir string, cache int) (DB, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]dbCreator{}
)

func registerDBCreator(backend string, creator dbCreator, force bool) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	_, ok := backends[backend]
	if !force && ok {
		return
	}
	backends[backend] = creator
}

//Backends 已经注册的后端
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//NewDB 创建数据库, 后端不存在或者打开失败返回错误
func NewDB(name string, backend string, dir string, cache int) (DB, error) {
	backendsMu.RLock()
	creator, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown db backend %s", backend)
	}
	db, err := creator(name, dir, cache)
	if err != nil {
		dlog.Error("NewDB", "backend", backend, "dir", dir, "err", err)
		return nil, err
	}
	return db, nil
}

func cloneByte(v []byte) []byte {
	if v == nil {
		return nil
	}
	value := make([]byte, len(v))
	copy(value, v)
	return value
}
