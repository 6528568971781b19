// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"time"

	"github.com/33cn/blockstage/types"
	"github.com/pkg/errors"
)

// TransactionOutcome 单笔交易的结果
// Processed 为 nil 表示交易没有执行, Err 为原因 (过期, 重复, 手续费不足...)
type TransactionOutcome struct {
	Processed *types.ProcessedTransaction
	Err       error
	Committed bool
}

// TransactionCounts 交易计数
type TransactionCounts struct {
	Attempted uint64
	// 已经执行 (扣除手续费), 包括指令执行失败的交易
	Executed uint64
	// 指令全部执行成功
	Succeeded uint64
	// 没有执行的交易, 包括过期
	Rejected  uint64
	Committed uint64
}

// ErrorCounters 按原因统计的错误
type ErrorCounters struct {
	Expired                 uint64
	AlreadyProcessed        uint64
	AccountNotFound         uint64
	InsufficientFundsForFee uint64
	InvalidComputeBudget    uint64
	MissingSignature        uint64
	// 其他没有执行的原因
	Other uint64
	// 已经扣费但指令执行失败
	InstructionError uint64
}

func (c *ErrorCounters) rejected(err error) {
	switch errors.Cause(err) {
	case types.ErrTxExpired:
		c.Expired++
	case types.ErrAlreadyProcessed:
		c.AlreadyProcessed++
	case types.ErrAccountNotFound:
		c.AccountNotFound++
	case types.ErrInsufficientFundsForFee:
		c.InsufficientFundsForFee++
	case types.ErrInvalidComputeBudget:
		c.InvalidComputeBudget++
	case types.ErrMissingSignature:
		c.MissingSignature++
	default:
		c.Other++
	}
}

// Timings 各阶段耗时
type Timings struct {
	CheckAge time.Duration
	Execute  time.Duration
	Record   time.Duration
	Commit   time.Duration
}

// Total 总耗时
func (t *Timings) Total() time.Duration {
	return t.CheckAge + t.Execute + t.Record + t.Commit
}

// BlockOutcome 一个区块的执行以及提交结果
// CommitResult 为 nil 表示排序日志已经接受并且状态已经提交
type BlockOutcome struct {
	Transactions  []TransactionOutcome
	Counts        TransactionCounts
	CommitResult  error
	CommitDetails []types.CommitTransactionDetails
	// 本区块第一笔交易在 slot 中的序号, 没有提交时为 nil
	StartingTransactionIndex *uint64
	// 排序日志拒绝时可以在新的 slot 重试的交易
	RetryableIndexes []int
	ErrorCounters    ErrorCounters
	Timings          Timings
	VotesForwarded   int
	// 已执行交易的计算单元价格范围
	MinPrioritizationFee uint64
	MaxPrioritizationFee uint64
}

// Committed 整个区块是否已经提交
func (o *BlockOutcome) Committed() bool {
	return o.CommitResult == nil
}

// Mixins 已经执行的交易的 mixin, 按区块中的顺序
func (o *BlockOutcome) Mixins() []types.Hash {
	var out []types.Hash
	for i := range o.Transactions {
		if p := o.Transactions[i].Processed; p != nil {
			out = append(out, p.MessageHash)
		}
	}
	return out
}
