// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blockstage 区块执行流水线: 检查有效期, 并行执行, 提交排序日志, 最后提交状态
package blockstage

import (
	"runtime"
	"time"

	"github.com/33cn/blockstage/account"
	"github.com/33cn/blockstage/committer"
	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/executor"
	"github.com/33cn/blockstage/poh"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var blog = log.New("module", "blockstage")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	blog.SetHandler(log.DiscardHandler())
}

// Ledger 区块执行使用的账本, executor.Bank 实现了这个接口
type Ledger interface {
	committer.Ledger
	Identity() types.BankIdentity
	LoadAccount(key types.Pubkey) (*types.Account, error)
	CheckAge(tx *types.Transaction, maxAge types.MaxAge) error
	ExecuteTransaction(loader executor.AccountLoader, tx *types.Transaction, opts executor.ExecOptions) (*types.ProcessedTransaction, error)
	IsFrozen() bool
}

// Recorder 排序日志提交接口
type Recorder interface {
	RecordTransactions(identity types.BankIdentity, mixins []types.Hash) poh.RecordSummary
}

// Committer 状态提交接口
type Committer interface {
	Commit(ledger committer.Ledger, processed []*types.ProcessedTransaction) (*committer.CommitOutcome, error)
}

// Option 配置 BlockConsumer
type Option func(*BlockConsumer)

// WithAccountOverrides 执行时先查询覆盖层
func WithAccountOverrides(overrides *account.Overrides) Option {
	return func(c *BlockConsumer) {
		c.overrides = overrides
	}
}

// WithLogMessagesBytesLimit 单笔交易日志长度上限, 0 表示不限制
func WithLogMessagesBytesLimit(limit int) Option {
	return func(c *BlockConsumer) {
		c.logMessagesBytesLimit = limit
	}
}

// WithWorkers 并行执行的线程数
func WithWorkers(n int) Option {
	return func(c *BlockConsumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMetrics 记录 prometheus 指标
func WithMetrics(m *Metrics) Option {
	return func(c *BlockConsumer) {
		c.metrics = m
	}
}

// WithConfig 使用配置文件中的 [consumer] 参数
func WithConfig(cfg *types.Consumer) Option {
	return func(c *BlockConsumer) {
		WithWorkers(int(cfg.Workers))(c)
		WithLogMessagesBytesLimit(int(cfg.LogMessagesBytesLimit))(c)
	}
}

// BlockConsumer 执行并提交区块, 同一个 slot 的调用需要由调用方串行
type BlockConsumer struct {
	committer             Committer
	recorder              Recorder
	overrides             *account.Overrides
	logMessagesBytesLimit int
	workers               int
	metrics               *Metrics
}

// NewBlockConsumer new
func NewBlockConsumer(cm Committer, recorder Recorder, opts ...Option) *BlockConsumer {
	c := &BlockConsumer{
		committer: cm,
		recorder:  recorder,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessAndRecordBlockTransactions 执行一个区块
// 1. 检查交易有效期以及区块内重复的签名
// 2. 按账户冲突分层并行执行, 结果只是暂存
// 3. 按区块顺序把已执行交易的 mixin 提交给排序日志
// 4. 排序日志接受之后提交状态, 拒绝时账本不变
func (c *BlockConsumer) ProcessAndRecordBlockTransactions(ledger Ledger, txs []*types.Transaction, maxAges []types.MaxAge, targetSlot types.Slot) *BlockOutcome {
	out := &BlockOutcome{}
	if c.metrics != nil {
		defer c.metrics.observe(out)
	}
	if len(txs) != len(maxAges) {
		out.CommitResult = errors.Wrapf(types.ErrLengthMismatch, "txs %d, max ages %d", len(txs), len(maxAges))
		return out
	}
	if ledger.Slot() != targetSlot {
		out.CommitResult = errors.Wrapf(types.ErrSlotMismatch, "bank slot %d, target slot %d", ledger.Slot(), targetSlot)
		return out
	}
	//已经有子 bank 的 bank 不能再提交
	if ledger.IsFrozen() {
		out.CommitResult = errors.Wrapf(types.ErrInactiveBank, "bank %s frozen", ledger.Identity())
		return out
	}
	out.Transactions = make([]TransactionOutcome, len(txs))
	out.Counts.Attempted = uint64(len(txs))

	beg := time.Now()
	ready := c.checkTransactions(ledger, txs, maxAges, out)
	out.Timings.CheckAge = time.Since(beg)

	beg = time.Now()
	c.execute(ledger, txs, ready, out)
	out.Timings.Execute = time.Since(beg)

	var processed []*types.ProcessedTransaction
	var mixins []types.Hash
	for i := range out.Transactions {
		p := out.Transactions[i].Processed
		if p == nil {
			continue
		}
		processed = append(processed, p)
		mixins = append(mixins, p.MessageHash)
	}
	if len(processed) == 0 {
		blog.Debug("ProcessAndRecordBlockTransactions nothing executed", "slot", targetSlot, "txs", len(txs))
		return out
	}

	beg = time.Now()
	summary := c.recorder.RecordTransactions(ledger.Identity(), mixins)
	out.Timings.Record = time.Since(beg)
	if summary.Err != nil {
		out.CommitResult = summary.Err
		for _, p := range processed {
			out.RetryableIndexes = append(out.RetryableIndexes, p.Index)
		}
		if types.IsFatal(summary.Err) {
			blog.Crit("RecordTransactions", "slot", targetSlot, "err", summary.Err)
		} else {
			blog.Info("RecordTransactions rejected", "slot", targetSlot, "txs", len(processed), "err", summary.Err)
		}
		return out
	}
	start := summary.StartingTransactionIndex
	out.StartingTransactionIndex = &start

	beg = time.Now()
	commitOut, err := c.committer.Commit(ledger, processed)
	out.Timings.Commit = time.Since(beg)
	if err != nil {
		out.CommitResult = err
		return out
	}
	out.CommitDetails = commitOut.Details
	out.VotesForwarded = commitOut.VotesForwarded
	for k, p := range processed {
		out.Transactions[p.Index].Committed = commitOut.Details[k].Committed
		if commitOut.Details[k].Committed {
			out.Counts.Committed++
		}
	}
	blog.Debug("ProcessAndRecordBlockTransactions", "slot", targetSlot, "txs", len(txs), "executed", out.Counts.Executed,
		"committed", out.Counts.Committed, "start", start, "cost", out.Timings.Total())
	return out
}

// 返回可以执行的交易下标, 按区块顺序
func (c *BlockConsumer) checkTransactions(ledger Ledger, txs []*types.Transaction, maxAges []types.MaxAge, out *BlockOutcome) []int {
	seen := make(map[types.Signature]struct{}, len(txs))
	ready := make([]int, 0, len(txs))
	for i, tx := range txs {
		if err := ledger.CheckAge(tx, maxAges[i]); err != nil {
			c.reject(out, i, err)
			continue
		}
		sig := tx.Signature()
		if _, ok := seen[sig]; ok {
			c.reject(out, i, types.ErrAlreadyProcessed)
			continue
		}
		seen[sig] = struct{}{}
		ready = append(ready, i)
	}
	return ready
}

func (c *BlockConsumer) reject(out *BlockOutcome, i int, err error) {
	out.Transactions[i].Err = err
	out.Counts.Rejected++
	out.ErrorCounters.rejected(err)
}

func (c *BlockConsumer) execute(ledger Ledger, txs []*types.Transaction, ready []int, out *BlockOutcome) {
	opts := executor.ExecOptions{LogMessagesBytesLimit: c.logMessagesBytesLimit}
	loader := newStagedLoader(ledger, c.overrides)
	results := make([]*types.ProcessedTransaction, len(txs))
	errs := make([]error, len(txs))
	for _, level := range schedule(txs, ready) {
		var g errgroup.Group
		g.SetLimit(c.workers)
		for _, i := range level {
			i := i
			g.Go(func() error {
				ptx, err := ledger.ExecuteTransaction(loader, txs[i], opts)
				if err != nil {
					errs[i] = err
					return nil
				}
				ptx.Index = i
				results[i] = ptx
				return nil
			})
		}
		_ = g.Wait()
		for _, i := range level {
			if results[i] != nil {
				loader.stage(results[i].Deltas)
			}
		}
	}

	first := true
	for _, i := range ready {
		if errs[i] != nil {
			c.reject(out, i, errs[i])
			continue
		}
		p := results[i]
		out.Transactions[i].Processed = p
		out.Counts.Executed++
		if p.WasSuccessful() {
			out.Counts.Succeeded++
		} else {
			out.ErrorCounters.InstructionError++
		}
		if first || p.ComputeUnitPrice < out.MinPrioritizationFee {
			out.MinPrioritizationFee = p.ComputeUnitPrice
		}
		if p.ComputeUnitPrice > out.MaxPrioritizationFee {
			out.MaxPrioritizationFee = p.ComputeUnitPrice
		}
		first = false
	}
}
