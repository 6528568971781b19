// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package executor 账本状态机: bank, 交易执行以及状态提交
package executor

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/33cn/blockstage/account"
	"github.com/33cn/blockstage/common"
	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/executor/drivers/system"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var elog = log.New("module", "executor")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	elog.SetHandler(log.DiscardHandler())
}

var bankIDSeq uint64

// AccountLoader 执行时读取账户, nil 表示账户不存在
type AccountLoader interface {
	LoadAccount(key types.Pubkey) (*types.Account, error)
}

// Bank 某个 slot 的工作账本
// 账户状态只通过 Commit 修改, 执行结果在提交之前不可见
type Bank struct {
	slot                 types.Slot
	bankID               uint64
	parentSlot           types.Slot
	lamportsPerSignature uint64

	accounts    *account.DB
	blockhashes *BlockhashQueue
	status      *StatusCache

	commitMu      sync.Mutex
	txCount       uint64
	signatures    uint64
	collectedFees uint64
	frozen        int32
}

// NewBank 创建 slot 0 的 bank, 同时注册 genesis blockhash
func NewBank(cfg *types.Ledger, accounts *account.DB) (*Bank, error) {
	status, err := NewStatusCache(int(cfg.StatusCacheSize))
	if err != nil {
		return nil, err
	}
	lps := cfg.LamportsPerSignature
	if lps == 0 {
		lps = types.DefaultLamportsPerSignature
	}
	b := &Bank{
		bankID:               atomic.AddUint64(&bankIDSeq, 1),
		lamportsPerSignature: lps,
		accounts:             accounts,
		blockhashes:          NewBlockhashQueue(int(cfg.MaxRecentBlockhashes)),
		status:               status,
	}
	b.blockhashes.Register(common.Sha256([]byte("blockstage-genesis")), 0)
	return b, nil
}

// NewFromParent 子 bank 共享账户存储以及状态缓存, slot 必须大于父 bank
func NewFromParent(parent *Bank, slot types.Slot) (*Bank, error) {
	if slot <= parent.slot {
		return nil, errors.Wrapf(types.ErrSlotMismatch, "parent slot %d, new slot %d", parent.slot, slot)
	}
	parent.Freeze()
	b := &Bank{
		slot:                 slot,
		bankID:               atomic.AddUint64(&bankIDSeq, 1),
		parentSlot:           parent.slot,
		lamportsPerSignature: parent.lamportsPerSignature,
		accounts:             parent.accounts,
		blockhashes:          parent.blockhashes.Clone(),
		status:               parent.status,
	}
	elog.Debug("NewFromParent", "parent", parent.slot, "slot", slot, "bank", b.bankID)
	return b, nil
}

// Slot slot
func (b *Bank) Slot() types.Slot {
	return b.slot
}

// ParentSlot parent slot
func (b *Bank) ParentSlot() types.Slot {
	return b.parentSlot
}

// BankID 进程内唯一
func (b *Bank) BankID() uint64 {
	return b.bankID
}

// Identity 提交给排序服务的身份
func (b *Bank) Identity() types.BankIdentity {
	return types.BankIdentity{Slot: b.slot, BankID: b.bankID}
}

// LamportsPerSignature 每个签名的手续费
func (b *Bank) LamportsPerSignature() uint64 {
	return b.lamportsPerSignature
}

// Freeze 冻结之后不再接受提交
func (b *Bank) Freeze() {
	atomic.StoreInt32(&b.frozen, 1)
}

// IsFrozen is frozen
func (b *Bank) IsFrozen() bool {
	return atomic.LoadInt32(&b.frozen) == 1
}

// LoadAccount 读取账本中的账户
func (b *Bank) LoadAccount(key types.Pubkey) (*types.Account, error) {
	return b.accounts.LoadAccount(key)
}

// GetBalance 余额
func (b *Bank) GetBalance(key types.Pubkey) uint64 {
	return b.accounts.GetBalance(key)
}

// Deposit 直接充值, 只用于创世以及测试
func (b *Bank) Deposit(key types.Pubkey, lamports uint64) error {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()
	_, err := b.accounts.GenesisInit(key, lamports)
	return err
}

// StoreAccount 直接写入账户, 只用于创世以及测试
func (b *Bank) StoreAccount(key types.Pubkey, acc *types.Account) error {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()
	return b.accounts.SaveAccount(key, acc)
}

// RegisterBlockhash 记录当前 slot 产生的 blockhash
func (b *Bank) RegisterBlockhash(hash types.Hash) {
	b.blockhashes.Register(hash, b.slot)
}

// RegisterTick 用 slot 生成一个 blockhash 并注册, 没有排序服务时使用
func (b *Bank) RegisterTick() types.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.slot)
	last := b.blockhashes.Last()
	hash := common.HashV(last[:], buf[:])
	b.RegisterBlockhash(hash)
	return hash
}

// LastBlockhash 最新的 blockhash
func (b *Bank) LastBlockhash() types.Hash {
	return b.blockhashes.Last()
}

// BlockhashSlot blockhash 所在的 slot
func (b *Bank) BlockhashSlot(hash types.Hash) (types.Slot, bool) {
	return b.blockhashes.Slot(hash)
}

// CheckAge 检查交易是否过期, durable nonce 交易使用 nonce 账户中记录的 blockhash
func (b *Bank) CheckAge(tx *types.Transaction, maxAge types.MaxAge) error {
	if maxAge == types.MaxAgeUnbounded {
		return nil
	}
	if hashSlot, ok := b.BlockhashSlot(tx.Message.RecentBlockhash); ok && !maxAge.Exceeded(hashSlot, b.slot) {
		return nil
	}
	key, ok := system.DurableNonce(tx)
	if !ok {
		return types.ErrTxExpired
	}
	//nonce 账户总是读取账本
	acc, err := b.LoadAccount(key)
	if err != nil || acc == nil {
		return types.ErrTxExpired
	}
	state, err := system.DecodeNonce(acc)
	if err != nil || !state.Initialized || state.Blockhash != tx.Message.RecentBlockhash {
		return types.ErrTxExpired
	}
	return nil
}

// HasSignature 签名是否已经提交
func (b *Bank) HasSignature(sig types.Signature) bool {
	return b.status.Contains(sig)
}

// ClearSignatures 清空状态缓存, 压测时重复使用同一批交易
func (b *Bank) ClearSignatures() {
	b.status.Clear()
}

// Commit 在一个 batch 中写入所有交易的状态变化, 然后记录签名以及手续费
func (b *Bank) Commit(processed []*types.ProcessedTransaction) error {
	if b.IsFrozen() {
		return errors.Wrapf(types.ErrInactiveBank, "bank %s frozen", b.Identity())
	}
	b.commitMu.Lock()
	defer b.commitMu.Unlock()
	batch := b.accounts.NewBatch()
	for _, ptx := range processed {
		if err := b.accounts.SaveAccounts(batch, ptx.Deltas); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write accounts")
	}
	var fees, sigs uint64
	for _, ptx := range processed {
		b.status.Add(ptx.Signature, b.slot)
		fees += ptx.Fee
		if ptx.Tx != nil {
			sigs += uint64(len(ptx.Tx.Signatures))
		}
	}
	atomic.AddUint64(&b.txCount, uint64(len(processed)))
	atomic.AddUint64(&b.signatures, sigs)
	atomic.AddUint64(&b.collectedFees, fees)
	elog.Debug("Commit", "slot", b.slot, "txs", len(processed), "fees", fees)
	return nil
}

// TransactionCount 已经提交的交易数
func (b *Bank) TransactionCount() uint64 {
	return atomic.LoadUint64(&b.txCount)
}

// SignatureCount 已经提交的签名数
func (b *Bank) SignatureCount() uint64 {
	return atomic.LoadUint64(&b.signatures)
}

// CollectedFees 已经收取的手续费
func (b *Bank) CollectedFees() uint64 {
	return atomic.LoadUint64(&b.collectedFees)
}
