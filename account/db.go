// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package account 账户状态的存储, 以及执行时使用的账户覆盖层
*/
package account

//package for account manger
//1. load from db
//2. save to db
//3. KVSet
//4. genesis deposit
//5. iterate all accounts

import (
	dbm "github.com/33cn/blockstage/common/db"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var alog = log.New("module", "account")

const accountKeyPrefix = "mavl-account-"

// DB for account
type DB struct {
	db               dbm.DB
	accountKeyPrefix []byte
}

// KeyValue 写入数据库的 kv
type KeyValue struct {
	Key   []byte
	Value []byte
}

// NewAccountDB 创建账户存储
func NewAccountDB(db dbm.DB) *DB {
	return &DB{db: db, accountKeyPrefix: []byte(accountKeyPrefix)}
}

// LoadAccount 读取账户, 不存在返回 nil, nil
func (acc *DB) LoadAccount(key types.Pubkey) (*types.Account, error) {
	value, err := acc.db.Get(acc.AccountKey(key))
	if err == dbm.ErrNotFoundInDb {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load account %s", key)
	}
	acc1, err := types.DecodeAccount(value)
	if err != nil {
		//数据库已经损坏
		alog.Crit("LoadAccount decode", "key", key, "err", err)
		return nil, errors.Wrapf(err, "decode account %s", key)
	}
	return acc1, nil
}

// GetBalance 账户余额, 账户不存在返回 0
func (acc *DB) GetBalance(key types.Pubkey) uint64 {
	acc1, err := acc.LoadAccount(key)
	if err != nil || acc1 == nil {
		return 0
	}
	return acc1.Lamports
}

// GetKVSet 账户对应的 kv, 空账户的 Value 为 nil 表示删除
func (acc *DB) GetKVSet(key types.Pubkey, acc1 *types.Account) (kvset []*KeyValue, err error) {
	kv := &KeyValue{Key: acc.AccountKey(key)}
	if !acc1.IsEmpty() {
		kv.Value, err = types.EncodeAccount(acc1)
		if err != nil {
			return nil, err
		}
	}
	return append(kvset, kv), nil
}

// SaveAccount 直接写入单个账户, 创世以及测试使用
func (acc *DB) SaveAccount(key types.Pubkey, acc1 *types.Account) error {
	batch := acc.db.NewBatch(true)
	if err := acc.SaveAccounts(batch, []types.AccountDelta{{Pubkey: key, Post: acc1}}); err != nil {
		return err
	}
	return batch.Write()
}

// SaveAccounts 把账户变化写入 batch, 由调用方 Write
func (acc *DB) SaveAccounts(batch dbm.Batch, deltas []types.AccountDelta) error {
	for i := range deltas {
		set, err := acc.GetKVSet(deltas[i].Pubkey, deltas[i].Post)
		if err != nil {
			return errors.Wrapf(err, "encode account %s", deltas[i].Pubkey)
		}
		for _, kv := range set {
			if kv.Value == nil {
				batch.Delete(kv.Key)
			} else {
				batch.Set(kv.Key, kv.Value)
			}
		}
	}
	return nil
}

// NewBatch 新建写入 batch
func (acc *DB) NewBatch() dbm.Batch {
	return acc.db.NewBatch(true)
}

// GenesisInit 给创世账户充值
func (acc *DB) GenesisInit(key types.Pubkey, lamports uint64) (*types.AccountDelta, error) {
	prev, err := acc.LoadAccount(key)
	if err != nil {
		return nil, err
	}
	post := prev.Clone()
	if post == nil {
		post = types.NewAccount(0, 0, types.SystemProgramID)
	}
	if post.Lamports+lamports < post.Lamports {
		return nil, types.ErrInvalidParam
	}
	post.Lamports += lamports
	if err := acc.SaveAccount(key, post); err != nil {
		return nil, err
	}
	return &types.AccountDelta{Pubkey: key, Prev: prev, Post: post}, nil
}

// Range 按 key 顺序遍历所有账户, fn 返回 false 停止
func (acc *DB) Range(fn func(key types.Pubkey, acc *types.Account) bool) error {
	it := acc.db.Iterator(acc.accountKeyPrefix)
	defer it.Close()
	for it.Next() {
		k := it.Key()[len(acc.accountKeyPrefix):]
		var key types.Pubkey
		if len(k) != len(key) {
			continue
		}
		copy(key[:], k)
		acc1, err := types.DecodeAccount(it.Value())
		if err != nil {
			return errors.Wrapf(err, "decode account %s", key)
		}
		if !fn(key, acc1) {
			break
		}
	}
	return it.Error()
}

// AccountKey return the key of address in DB
func (acc *DB) AccountKey(key types.Pubkey) []byte {
	k := make([]byte, 0, len(acc.accountKeyPrefix)+len(key))
	k = append(k, acc.accountKeyPrefix...)
	return append(k, key[:]...)
}
