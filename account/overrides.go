// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package account

import (
	"sync"

	"github.com/33cn/blockstage/types"
	farm "github.com/dgryski/go-farm"
)

const overrideShards = 64

type overrideShard struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*types.Account
}

// Overrides 执行时替换账户状态的覆盖层, 可以被多个执行线程共享
// 没有 key 表示使用账本中的状态, key 对应空账户表示账户已经被删除
type Overrides struct {
	shards [overrideShards]*overrideShard
}

// NewOverrides 空的覆盖层
func NewOverrides() *Overrides {
	o := &Overrides{}
	for i := range o.shards {
		o.shards[i] = &overrideShard{accounts: make(map[types.Pubkey]*types.Account)}
	}
	return o
}

func (o *Overrides) shard(key types.Pubkey) *overrideShard {
	return o.shards[farm.Hash32(key[:])%overrideShards]
}

// Set acc 不为 nil 时写入, 为 nil 时移除
func (o *Overrides) Set(key types.Pubkey, acc *types.Account) {
	s := o.shard(key)
	var cp *types.Account
	if acc != nil {
		cp = acc.Clone()
	}
	s.mu.Lock()
	if cp == nil {
		delete(s.accounts, key)
	} else {
		s.accounts[key] = cp
	}
	s.mu.Unlock()
}

// SetSlotHistory 覆盖 slot history sysvar
func (o *Overrides) SetSlotHistory(acc *types.Account) {
	o.Set(types.SysvarSlotHistoryID, acc)
}

// Get 只查询覆盖层
func (o *Overrides) Get(key types.Pubkey) (*types.Account, bool) {
	s := o.shard(key)
	s.mu.RLock()
	acc, ok := s.accounts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Merge 逐个 key 合并 other, 整体不是原子的
func (o *Overrides) Merge(other *Overrides) {
	if other == nil || other == o {
		return
	}
	other.Range(func(key types.Pubkey, acc *types.Account) bool {
		o.Set(key, acc)
		return true
	})
}

// Len 各个分片大小之和, 并发写入时只是近似值
func (o *Overrides) Len() int {
	n := 0
	for _, s := range o.shards {
		s.mu.RLock()
		n += len(s.accounts)
		s.mu.RUnlock()
	}
	return n
}

// IsEmpty 是否为空
func (o *Overrides) IsEmpty() bool {
	return o.Len() == 0
}

// Range 按分片遍历快照, fn 返回 false 停止
func (o *Overrides) Range(fn func(key types.Pubkey, acc *types.Account) bool) {
	for _, s := range o.shards {
		s.mu.RLock()
		keys := make([]types.Pubkey, 0, len(s.accounts))
		accs := make([]*types.Account, 0, len(s.accounts))
		for k, v := range s.accounts {
			keys = append(keys, k)
			accs = append(accs, v)
		}
		s.mu.RUnlock()
		for i := range keys {
			if !fn(keys[i], accs[i].Clone()) {
				return
			}
		}
	}
}

// Overridable 该账户是否可以被覆盖层替换, nonce 账户和 instructions sysvar 总是读取账本
func Overridable(key types.Pubkey, canonical *types.Account) bool {
	if key == types.SysvarInstructionsID {
		return false
	}
	return !canonical.IsNonce()
}
