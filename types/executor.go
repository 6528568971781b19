// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

// ProcessedTransaction 已经扣除手续费的交易执行结果, Status 为 nil 表示执行成功
// Deltas 只是暂存结果, 在 Commit 之前不会写入账本
type ProcessedTransaction struct {
	Index                  int
	Signature              Signature
	MessageHash            Hash
	Status                 error
	Fee                    uint64
	PrioritizationFee      uint64
	ComputeUnitLimit       uint32
	ComputeUnitPrice       uint64
	ComputeUnitsConsumed   uint64
	LoadedAccountsDataSize uint32
	Deltas                 []AccountDelta
	LogMessages            []string
	IsVote                 bool
	Tx                     *Transaction
}

// WasSuccessful 指令全部执行成功
func (ptx *ProcessedTransaction) WasSuccessful() bool {
	return ptx.Status == nil
}

// WritableKeys 交易的可写账户
func (ptx *ProcessedTransaction) WritableKeys() []Pubkey {
	if ptx.Tx == nil {
		return nil
	}
	return ptx.Tx.WritableKeys()
}

// CommitTransactionDetails 单笔交易的提交结果
type CommitTransactionDetails struct {
	Committed              bool
	Status                 error
	ComputeUnits           uint64
	LoadedAccountsDataSize uint32
}

// Record 提交给排序服务的一组 mixin
type Record struct {
	Identity BankIdentity
	Mixins   []Hash
}

// RecordReply 排序服务接受提交后的回复
type RecordReply struct {
	StartingTransactionIndex uint64
}

// Vote 投票内容
type Vote struct {
	Slots     []uint64
	Hash      Hash
	Timestamp uint64
}

// LastVotedSlot 最后一个投票 slot
func (v *Vote) LastVotedSlot() (Slot, bool) {
	if len(v.Slots) == 0 {
		return 0, false
	}
	return v.Slots[len(v.Slots)-1], true
}

// ParsedVote 投票交易解析结果, 转发给共识投票模块
type ParsedVote struct {
	VoteAccount Pubkey
	Vote        Vote
	Signature   Signature
}

// FeeUpdate 手续费市场缓存的一条更新
type FeeUpdate struct {
	ComputeUnitPrice uint64
	WritableAccounts []Pubkey
}
