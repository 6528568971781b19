// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feecache 优先费缓存, 按 slot 记录最小优先费以及每个可写账户的最小优先费
package feecache

import (
	"math"
	"sync"
	"sync/atomic"

	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/types"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/inconshreveable/log15"
)

var flog = log.New("module", "feecache")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	flog.SetHandler(log.DiscardHandler())
}

// SlotFees 一个已经确定的 slot 的优先费
type SlotFees struct {
	MinTransactionFee uint64
	AccountFees       map[types.Pubkey]uint64
}

type pendingFees struct {
	minTxFee    uint64
	accountFees map[types.Pubkey]uint64
}

func newPendingFees() *pendingFees {
	return &pendingFees{minTxFee: math.MaxUint64, accountFees: make(map[types.Pubkey]uint64)}
}

func (p *pendingFees) update(u *types.FeeUpdate) {
	if u.ComputeUnitPrice < p.minTxFee {
		p.minTxFee = u.ComputeUnitPrice
	}
	for _, key := range u.WritableAccounts {
		if fee, ok := p.accountFees[key]; !ok || u.ComputeUnitPrice < fee {
			p.accountFees[key] = u.ComputeUnitPrice
		}
	}
}

func (p *pendingFees) finalize() *SlotFees {
	fees := &SlotFees{MinTransactionFee: p.minTxFee, AccountFees: p.accountFees}
	if p.minTxFee == math.MaxUint64 {
		fees.MinTransactionFee = 0
	}
	return fees
}

const (
	tyUpdate = iota
	tyFinalize
	tyFlush
)

type cacheMsg struct {
	ty      int
	slot    types.Slot
	bankID  uint64
	updates []types.FeeUpdate
	reply   chan struct{}
}

// PrioritizationFeeCache 后台线程处理更新, Update 不会阻塞, channel 满时丢弃并计数
type PrioritizationFeeCache struct {
	ch        chan *cacheMsg
	pending   map[types.Slot]map[uint64]*pendingFees
	finalized *lru.Cache

	dropped   uint64
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New 启动后台线程
func New(cfg *types.FeeCache) *PrioritizationFeeCache {
	capacity := int(cfg.Capacity)
	if capacity <= 0 {
		capacity = 150
	}
	size := int(cfg.ChannelSize)
	if size <= 0 {
		size = 10000
	}
	finalized, err := lru.New(capacity)
	if err != nil {
		panic(err)
	}
	c := &PrioritizationFeeCache{
		ch:        make(chan *cacheMsg, size),
		pending:   make(map[types.Slot]map[uint64]*pendingFees),
		finalized: finalized,
		done:      make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Update 记录一个 bank 提交的优先费
func (c *PrioritizationFeeCache) Update(slot types.Slot, bankID uint64, updates []types.FeeUpdate) {
	msg := &cacheMsg{ty: tyUpdate, slot: slot, bankID: bankID, updates: updates}
	select {
	case <-c.done:
		atomic.AddUint64(&c.dropped, 1)
		return
	default:
	}
	select {
	case c.ch <- msg:
	default:
		n := atomic.AddUint64(&c.dropped, 1)
		flog.Warn("Update channel full", "slot", slot, "dropped", n)
	}
}

// FinalizePriorityFee slot 确定之后调用, 同一个 slot 其他 bank 的数据被丢弃
func (c *PrioritizationFeeCache) FinalizePriorityFee(slot types.Slot, bankID uint64) {
	c.send(&cacheMsg{ty: tyFinalize, slot: slot, bankID: bankID})
}

// Flush 等待之前的消息都处理完成
func (c *PrioritizationFeeCache) Flush() {
	reply := make(chan struct{})
	if !c.send(&cacheMsg{ty: tyFlush, reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-c.done:
	}
}

func (c *PrioritizationFeeCache) send(msg *cacheMsg) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Close 停止后台线程
func (c *PrioritizationFeeCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Dropped 因为 channel 满或者已经关闭而丢弃的更新
func (c *PrioritizationFeeCache) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// AvailableSlots 已经确定的 slot 个数
func (c *PrioritizationFeeCache) AvailableSlots() int {
	return c.finalized.Len()
}

// GetPrioritizationFees 每个已确定 slot 的优先费: 交易最小优先费与给定账户最小优先费中的最大值
func (c *PrioritizationFeeCache) GetPrioritizationFees(accounts []types.Pubkey) map[types.Slot]uint64 {
	out := make(map[types.Slot]uint64)
	for _, k := range c.finalized.Keys() {
		v, ok := c.finalized.Peek(k)
		if !ok {
			continue
		}
		fees := v.(*SlotFees)
		fee := fees.MinTransactionFee
		for _, acc := range accounts {
			if f, ok := fees.AccountFees[acc]; ok && f > fee {
				fee = f
			}
		}
		out[k.(types.Slot)] = fee
	}
	return out
}

func (c *PrioritizationFeeCache) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.ch:
			c.process(msg)
		}
	}
}

func (c *PrioritizationFeeCache) process(msg *cacheMsg) {
	switch msg.ty {
	case tyUpdate:
		banks, ok := c.pending[msg.slot]
		if !ok {
			banks = make(map[uint64]*pendingFees)
			c.pending[msg.slot] = banks
		}
		p, ok := banks[msg.bankID]
		if !ok {
			p = newPendingFees()
			banks[msg.bankID] = p
		}
		for i := range msg.updates {
			p.update(&msg.updates[i])
		}
	case tyFinalize:
		p := newPendingFees()
		if banks, ok := c.pending[msg.slot]; ok {
			if fees, ok := banks[msg.bankID]; ok {
				p = fees
			}
		}
		//更早的 slot 不会再确定
		for slot := range c.pending {
			if slot <= msg.slot {
				delete(c.pending, slot)
			}
		}
		fees := p.finalize()
		c.finalized.Add(msg.slot, fees)
		flog.Debug("FinalizePriorityFee", "slot", msg.slot, "bank", msg.bankID, "min", fees.MinTransactionFee, "accounts", len(fees.AccountFees))
	case tyFlush:
		close(msg.reply)
	}
}
