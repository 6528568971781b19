// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package db

import (
	"encoding/hex"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, backend string) (DB, func()) {
	dir, err := os.MkdirTemp("", "blockstage-"+backend)
	require.Nil(t, err)
	db, err := NewDB("test", backend, dir, 16)
	require.Nil(t, err)
	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []string{GoBadgerDBBackendStr, GoLevelDBBackendStr, LevelDBBackendStr, MemDBBackendStr}, Backends())
	_, err := NewDB("test", "nosuchdb", "", 0)
	assert.NotNil(t, err)
}

func TestAllBackends(t *testing.T) {
	for _, backend := range []string{MemDBBackendStr, GoLevelDBBackendStr, GoBadgerDBBackendStr} {
		t.Run(backend, func(t *testing.T) {
			db, closer := newTestDB(t, backend)
			defer closer()
			testDBGetSet(t, db)
			testDBIterator(t, db)
			testDBBatch(t, db)
		})
	}
}

func testDBGetSet(t *testing.T, db DB) {
	_, err := db.Get([]byte("nokey"))
	assert.Equal(t, ErrNotFoundInDb, err)

	require.Nil(t, db.Set([]byte("k1"), []byte("v1")))
	v, err := db.Get([]byte("k1"))
	require.Nil(t, err)
	assert.Equal(t, []byte("v1"), v)

	//返回的是拷贝
	v[0] = 'x'
	v, _ = db.Get([]byte("k1"))
	assert.Equal(t, []byte("v1"), v)

	require.Nil(t, db.SetSync([]byte("k2"), []byte("v2")))
	require.Nil(t, db.Delete([]byte("k1")))
	require.Nil(t, db.DeleteSync([]byte("k2")))
	_, err = db.Get([]byte("k1"))
	assert.Equal(t, ErrNotFoundInDb, err)
	_, err = db.Get([]byte("k2"))
	assert.Equal(t, ErrNotFoundInDb, err)
	assert.NotNil(t, db.Stats())
}

// 迭代测试
func testDBIterator(t *testing.T, db DB) {
	keys := []string{"aaaaaa/1", "my_key/3", "my_key/1", "my_key/2", "my", "my_", "zzzzzz/1"}
	for _, k := range keys {
		require.Nil(t, db.Set([]byte(k), []byte(k)))
	}
	b, err := hex.DecodeString("ff")
	require.NoError(t, err)
	require.Nil(t, db.Set(b, b))

	collect := func(prefix []byte) []string {
		it := db.Iterator(prefix)
		defer it.Close()
		var list []string
		for it.Next() {
			assert.Equal(t, string(it.Key()), string(it.Value()))
			list = append(list, string(it.Key()))
		}
		require.Nil(t, it.Error())
		return list
	}
	assert.Equal(t, []string{"my", "my_", "my_key/1", "my_key/2", "my_key/3"}, collect([]byte("my")))
	assert.Equal(t, []string{"my_key/1", "my_key/2", "my_key/3"}, collect([]byte("my_key/")))
	assert.Nil(t, collect([]byte("none")))
	assert.Equal(t, 8, len(collect(nil)))
	for _, k := range keys {
		require.Nil(t, db.Delete([]byte(k)))
	}
	require.Nil(t, db.Delete(b))
}

func testDBBatch(t *testing.T, db DB) {
	require.Nil(t, db.Set([]byte("old"), []byte("1")))
	batch := db.NewBatch(true)
	batch.Set([]byte("b1"), []byte("1"))
	batch.Set([]byte("b2"), []byte("22"))
	batch.Delete([]byte("old"))
	assert.Equal(t, 4, batch.ValueSize())

	//Write 之前不可见
	_, err := db.Get([]byte("b1"))
	assert.Equal(t, ErrNotFoundInDb, err)

	require.Nil(t, batch.Write())
	v, err := db.Get([]byte("b2"))
	require.Nil(t, err)
	assert.Equal(t, []byte("22"), v)
	_, err = db.Get([]byte("old"))
	assert.Equal(t, ErrNotFoundInDb, err)

	batch.Reset()
	assert.Equal(t, 0, batch.ValueSize())
	require.Nil(t, batch.Write())
}

func TestMemDBBatchAtomic(t *testing.T) {
	db, closer := newTestDB(t, MemDBBackendStr)
	defer closer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			batch := db.NewBatch(false)
			batch.Set([]byte("a"), []byte{byte(i)})
			batch.Set([]byte("b"), []byte{byte(i)})
			assert.Nil(t, batch.Write())
		}
	}()
	for i := 0; i < 200; i++ {
		mdb := db.(*GoMemDB)
		mdb.lock.RLock()
		a, erra := mdb.db.Get([]byte("a"))
		b, errb := mdb.db.Get([]byte("b"))
		mdb.lock.RUnlock()
		if erra == nil && errb == nil {
			assert.Equal(t, a, b)
		}
	}
	wg.Wait()
}
