// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor

import (
	"sync"

	"github.com/33cn/blockstage/types"
)

// BlockhashQueue 最近的 blockhash 以及所在的 slot, 超出容量时淘汰最老的
type BlockhashQueue struct {
	mu       sync.RWMutex
	slots    map[types.Hash]types.Slot
	order    []types.Hash
	capacity int
}

// NewBlockhashQueue new
func NewBlockhashQueue(capacity int) *BlockhashQueue {
	if capacity <= 0 {
		capacity = 300
	}
	return &BlockhashQueue{slots: make(map[types.Hash]types.Slot), capacity: capacity}
}

// Register 记录 blockhash, 已经存在时不更新 slot
func (q *BlockhashQueue) Register(hash types.Hash, slot types.Slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.slots[hash]; ok {
		return
	}
	q.slots[hash] = slot
	q.order = append(q.order, hash)
	for len(q.order) > q.capacity {
		delete(q.slots, q.order[0])
		q.order = q.order[1:]
	}
}

// Slot blockhash 所在的 slot
func (q *BlockhashQueue) Slot(hash types.Hash) (types.Slot, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	slot, ok := q.slots[hash]
	return slot, ok
}

// Last 最新的 blockhash
func (q *BlockhashQueue) Last() types.Hash {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.order) == 0 {
		return types.Hash{}
	}
	return q.order[len(q.order)-1]
}

// Len 当前数量
func (q *BlockhashQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.order)
}

// Clone 子 bank 使用独立的拷贝
func (q *BlockhashQueue) Clone() *BlockhashQueue {
	q.mu.RLock()
	defer q.mu.RUnlock()
	cp := &BlockhashQueue{
		slots:    make(map[types.Hash]types.Slot, len(q.slots)),
		order:    make([]types.Hash, len(q.order)),
		capacity: q.capacity,
	}
	copy(cp.order, q.order)
	for k, v := range q.slots {
		cp.slots[k] = v
	}
	return cp
}
