// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package committer 排序日志接受之后提交执行结果
package committer

import (
	"sync/atomic"

	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/executor/drivers/vote"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var blog = log.New("module", "committer")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	blog.SetHandler(log.DiscardHandler())
}

// Ledger 账本提交接口, 一次写入所有交易的状态变化
type Ledger interface {
	Slot() types.Slot
	BankID() uint64
	Commit(processed []*types.ProcessedTransaction) error
}

// FeeCache 手续费市场缓存, Update 不能阻塞
type FeeCache interface {
	Update(slot types.Slot, bankID uint64, updates []types.FeeUpdate)
}

// CommitOutcome 提交结果, Details 与 processed 一一对应
type CommitOutcome struct {
	Details        []types.CommitTransactionDetails
	VotesForwarded int
	VotesDropped   int
	FeeUpdates     int
}

// Stats 累计统计
type Stats struct {
	Commits        uint64
	ApplyFailures  uint64
	VotesForwarded uint64
	VotesDropped   uint64
}

// Committer 提交执行结果, 转发投票, 更新手续费缓存
type Committer struct {
	voteSender *ReplayVoteSender
	feeCache   FeeCache

	commits        uint64
	applyFailures  uint64
	votesForwarded uint64
	votesDropped   uint64
}

// New voteSender 和 feeCache 都可以为 nil
func New(voteSender *ReplayVoteSender, feeCache FeeCache) *Committer {
	return &Committer{voteSender: voteSender, feeCache: feeCache}
}

// Commit 只在排序日志接受之后调用, 账本写入失败是不可恢复的错误 (ErrLedgerApply)
func (c *Committer) Commit(ledger Ledger, processed []*types.ProcessedTransaction) (*CommitOutcome, error) {
	slot := ledger.Slot()
	if err := ledger.Commit(processed); err != nil {
		atomic.AddUint64(&c.applyFailures, 1)
		err = errors.Wrapf(types.ErrLedgerApply, "slot %d txs %d: %v", slot, len(processed), err)
		blog.Crit("Commit ledger apply failed", "slot", slot, "bank", ledger.BankID(), "err", err)
		return nil, err
	}
	atomic.AddUint64(&c.commits, 1)

	out := &CommitOutcome{Details: make([]types.CommitTransactionDetails, len(processed))}
	var updates []types.FeeUpdate
	for i, ptx := range processed {
		out.Details[i] = types.CommitTransactionDetails{
			Committed:              true,
			Status:                 ptx.Status,
			ComputeUnits:           ptx.ComputeUnitsConsumed,
			LoadedAccountsDataSize: ptx.LoadedAccountsDataSize,
		}
		if ptx.IsVote {
			if ptx.WasSuccessful() {
				c.forwardVote(ptx, out)
			}
			continue
		}
		updates = append(updates, types.FeeUpdate{
			ComputeUnitPrice: ptx.ComputeUnitPrice,
			WritableAccounts: ptx.WritableKeys(),
		})
	}
	if c.feeCache != nil && len(updates) > 0 {
		c.feeCache.Update(slot, ledger.BankID(), updates)
		out.FeeUpdates = len(updates)
	}
	blog.Debug("Commit", "slot", slot, "txs", len(processed), "votes", out.VotesForwarded, "fees", out.FeeUpdates)
	return out, nil
}

func (c *Committer) forwardVote(ptx *types.ProcessedTransaction, out *CommitOutcome) {
	if c.voteSender == nil || ptx.Tx == nil {
		return
	}
	parsed, ok := vote.ParseVoteTransaction(ptx.Tx)
	if !ok {
		return
	}
	if err := c.voteSender.TrySend(parsed); err != nil {
		out.VotesDropped++
		atomic.AddUint64(&c.votesDropped, 1)
		blog.Debug("forwardVote", "sig", ptx.Signature, "err", err)
		return
	}
	out.VotesForwarded++
	atomic.AddUint64(&c.votesForwarded, 1)
}

// Stats 累计统计
func (c *Committer) Stats() Stats {
	return Stats{
		Commits:        atomic.LoadUint64(&c.commits),
		ApplyFailures:  atomic.LoadUint64(&c.applyFailures),
		VotesForwarded: atomic.LoadUint64(&c.votesForwarded),
		VotesDropped:   atomic.LoadUint64(&c.votesDropped),
	}
}
