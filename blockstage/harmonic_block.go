// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"github.com/33cn/blockstage/types"
)

// HarmonicBlock 一组原始交易以及目标 slot, 不做任何检查
type HarmonicBlock struct {
	txs  [][]byte
	slot types.Slot
}

// NewHarmonicBlock new
func NewHarmonicBlock(txs [][]byte, slot types.Slot) *HarmonicBlock {
	return &HarmonicBlock{txs: txs, slot: slot}
}

// Transactions 原始交易, Take 之后返回 nil
func (b *HarmonicBlock) Transactions() [][]byte {
	return b.txs
}

// IntendedSlot 目标 slot, 可能已经过时
func (b *HarmonicBlock) IntendedSlot() types.Slot {
	return b.slot
}

// Take 取走交易, 之后 block 不再可用
func (b *HarmonicBlock) Take() [][]byte {
	txs := b.txs
	b.txs = nil
	return txs
}

// DecodeTransactions 解码原始交易, 无法解码的丢弃并计数
func DecodeTransactions(raw [][]byte) (txs []*types.Transaction, invalid int) {
	txs = make([]*types.Transaction, 0, len(raw))
	for _, data := range raw {
		tx, err := types.DecodeTransaction(data)
		if err != nil {
			blog.Debug("DecodeTransactions", "err", err)
			invalid++
			continue
		}
		txs = append(txs, tx)
	}
	return txs, invalid
}
