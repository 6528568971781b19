// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package poh 排序日志服务: 连续的 sha256 哈希链, 交易的 mixin 按提交顺序混入
package poh

import (
	"github.com/33cn/blockstage/common"
	"github.com/33cn/blockstage/types"
)

// Entry 哈希链中的一段
// NumHashes 包括混入 mixin 的次数, Mixins 为空表示 tick
type Entry struct {
	NumHashes uint64
	Hash      types.Hash
	Mixins    []types.Hash
}

// IsTick tick entry
func (e *Entry) IsTick() bool {
	return len(e.Mixins) == 0
}

// Poh 哈希链状态, 不是线程安全的
type Poh struct {
	hash          types.Hash
	numHashes     uint64
	hashesPerTick uint64
	tickHeight    uint64
}

// NewPoh 从 seed 开始
func NewPoh(seed types.Hash, hashesPerTick uint64) *Poh {
	if hashesPerTick == 0 {
		hashesPerTick = 1
	}
	return &Poh{hash: seed, hashesPerTick: hashesPerTick}
}

// Hash 空转 n 次, 不会越过下一个 tick
func (p *Poh) Hash(n uint64) {
	if p.numHashes+n >= p.hashesPerTick {
		if p.hashesPerTick-1 <= p.numHashes {
			return
		}
		n = p.hashesPerTick - 1 - p.numHashes
	}
	p.hash = common.HashN(p.hash, n)
	p.numHashes += n
}

// Record 把 mixin 依次混入, 返回一个 entry
func (p *Poh) Record(mixins []types.Hash) *Entry {
	for _, m := range mixins {
		p.hash = common.ExtendAndHash(p.hash, m)
	}
	e := &Entry{
		NumHashes: p.numHashes + uint64(len(mixins)),
		Hash:      p.hash,
		Mixins:    append([]types.Hash(nil), mixins...),
	}
	p.numHashes = 0
	return e
}

// Tick 补齐一个 tick 需要的哈希次数
func (p *Poh) Tick() *Entry {
	var n uint64
	if p.numHashes < p.hashesPerTick {
		n = p.hashesPerTick - p.numHashes
	} else {
		n = 1
	}
	p.hash = common.HashN(p.hash, n)
	e := &Entry{NumHashes: p.numHashes + n, Hash: p.hash}
	p.numHashes = 0
	p.tickHeight++
	return e
}

// Current 当前哈希
func (p *Poh) Current() types.Hash {
	return p.hash
}

// TickHeight tick 总数
func (p *Poh) TickHeight() uint64 {
	return p.tickHeight
}

// VerifyEntries 从 start 开始重新计算哈希链
func VerifyEntries(start types.Hash, entries []*Entry) bool {
	h := start
	for _, e := range entries {
		n := uint64(len(e.Mixins))
		if e.NumHashes < n || (n == 0 && e.NumHashes == 0) {
			return false
		}
		h = common.HashN(h, e.NumHashes-n)
		for _, m := range e.Mixins {
			h = common.ExtendAndHash(h, m)
		}
		if h != e.Hash {
			return false
		}
	}
	return true
}
