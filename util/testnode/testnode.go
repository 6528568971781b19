// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testnode 组装完整的区块执行流水线, 用于单元测试、集成测试以及压测
package testnode

import (
	"github.com/33cn/blockstage/account"
	"github.com/33cn/blockstage/blockstage"
	"github.com/33cn/blockstage/committer"
	dbm "github.com/33cn/blockstage/common/db"
	"github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/executor"
	"github.com/33cn/blockstage/feecache"
	"github.com/33cn/blockstage/poh"
	"github.com/33cn/blockstage/queue"
	"github.com/33cn/blockstage/types"
	log15 "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var nlog = log15.New("module", "testnode")

// BlockstageMock 进程内的验证节点: 账本, 排序服务, 提交以及区块执行
type BlockstageMock struct {
	cfg       *types.Config
	q         queue.Queue
	db        dbm.DB
	genesis   *executor.Bank
	bank      *executor.Bank
	poh       *poh.Service
	recorder  *poh.TransactionRecorder
	votes     *committer.ReplayVoteReceiver
	fees      *feecache.PrioritizationFeeCache
	committer *committer.Committer
	consumer  *blockstage.BlockConsumer
	overrides *account.Overrides
	metrics   *blockstage.Metrics
}

// GetDefaultConfig 默认配置, 账本使用 memdb
func GetDefaultConfig() *types.Config {
	return types.DefaultConfig()
}

// New 创建节点, 当前工作 bank 为 slot 1
func New(cfg *types.Config) (*BlockstageMock, error) {
	if cfg == nil {
		cfg = GetDefaultConfig()
	}
	log.SetFileLog(&cfg.Log)
	db, err := dbm.NewDB("accounts", cfg.Ledger.Driver, cfg.Ledger.DbPath, int(cfg.Ledger.DbCache))
	if err != nil {
		return nil, errors.Wrap(err, "open accounts db")
	}
	genesis, err := executor.NewBank(&cfg.Ledger, account.NewAccountDB(db))
	if err != nil {
		db.Close()
		return nil, err
	}
	mock := &BlockstageMock{
		cfg:       cfg,
		q:         queue.New("channel"),
		db:        db,
		genesis:   genesis,
		bank:      genesis,
		overrides: account.NewOverrides(),
		metrics:   blockstage.NewMetrics(),
	}
	mock.poh = poh.New(&cfg.Poh, genesis.LastBlockhash())
	mock.poh.SetQueueClient(mock.q.Client())
	mock.recorder = poh.NewTransactionRecorder(mock.q.Client(), &cfg.Poh)

	sender, receiver := committer.NewReplayVoteChannel()
	mock.votes = receiver
	mock.fees = feecache.New(&cfg.FeeCache)
	mock.committer = committer.New(sender, mock.fees)
	mock.consumer = blockstage.NewBlockConsumer(mock.committer, mock.recorder,
		blockstage.WithConfig(&cfg.Consumer),
		blockstage.WithAccountOverrides(mock.overrides),
		blockstage.WithMetrics(mock.metrics),
	)
	if err := mock.NewSlot(1); err != nil {
		mock.Close()
		return nil, err
	}
	return mock, nil
}

// NewSlot 冻结当前 bank, 在新的 slot 上创建子 bank 并通知排序服务
// 上一个 slot 的优先费在这里确定
func (mock *BlockstageMock) NewSlot(slot types.Slot) error {
	prev := mock.bank
	bank, err := executor.NewFromParent(prev, slot)
	if err != nil {
		return err
	}
	if prev != mock.genesis {
		mock.fees.FinalizePriorityFee(prev.Slot(), prev.BankID())
	}
	bank.RegisterTick()
	if err := mock.recorder.Restart(bank.Identity()); err != nil {
		return errors.Wrapf(err, "restart recorder at slot %d", slot)
	}
	mock.bank = bank
	nlog.Debug("NewSlot", "slot", slot, "bank", bank.BankID())
	return nil
}

// ProcessBlock 在当前 bank 上执行一个区块
func (mock *BlockstageMock) ProcessBlock(txs []*types.Transaction, maxAges []types.MaxAge) *blockstage.BlockOutcome {
	return mock.consumer.ProcessAndRecordBlockTransactions(mock.bank, txs, maxAges, mock.bank.Slot())
}

// ProcessHarmonicBlock 解码原始交易并在目标 slot 执行, 交易不设有效期限制
func (mock *BlockstageMock) ProcessHarmonicBlock(block *blockstage.HarmonicBlock) (*blockstage.BlockOutcome, int) {
	slot := block.IntendedSlot()
	txs, invalid := blockstage.DecodeTransactions(block.Take())
	ages := make([]types.MaxAge, len(txs))
	for i := range ages {
		ages[i] = types.MaxAgeUnbounded
	}
	return mock.consumer.ProcessAndRecordBlockTransactions(mock.bank, txs, ages, slot), invalid
}

// GetCfg 配置
func (mock *BlockstageMock) GetCfg() *types.Config {
	return mock.cfg
}

// Bank 当前工作 bank
func (mock *BlockstageMock) Bank() *executor.Bank {
	return mock.bank
}

// Poh 排序服务
func (mock *BlockstageMock) Poh() *poh.Service {
	return mock.poh
}

// Votes 已提交的投票
func (mock *BlockstageMock) Votes() *committer.ReplayVoteReceiver {
	return mock.votes
}

// FeeCache 优先费缓存
func (mock *BlockstageMock) FeeCache() *feecache.PrioritizationFeeCache {
	return mock.fees
}

// Committer committer
func (mock *BlockstageMock) Committer() *committer.Committer {
	return mock.committer
}

// Overrides 执行时使用的覆盖层
func (mock *BlockstageMock) Overrides() *account.Overrides {
	return mock.overrides
}

// Metrics 区块执行指标
func (mock *BlockstageMock) Metrics() *blockstage.Metrics {
	return mock.metrics
}

// Close 依次关闭排序服务, 队列, 优先费缓存以及数据库
func (mock *BlockstageMock) Close() {
	mock.poh.Close()
	mock.q.Close()
	mock.fees.Close()
	mock.votes.Close()
	mock.db.Close()
	nlog.Info("BlockstageMock closed")
}
