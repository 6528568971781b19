// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drivers

import (
	"fmt"

	"github.com/33cn/blockstage/types"
)

// Env 执行环境, 来自 bank
type Env struct {
	Slot                 types.Slot
	Blockhash            types.Hash
	LamportsPerSignature uint64
}

// InvokeContext 一笔交易的执行上下文, 账户和交易的 AccountKeys 一一对应
// 只在单个执行线程中使用
type InvokeContext struct {
	Env       Env
	tx        *types.Transaction
	accounts  []*types.Account
	limit     uint64
	consumed  uint64
	logs      []string
	logBytes  int
	logLimit  int
	truncated bool
}

// NewInvokeContext accounts 中 nil 表示账户不存在, logLimit 为 0 表示不限制日志长度
func NewInvokeContext(env Env, tx *types.Transaction, accounts []*types.Account, computeLimit uint64, logLimit int) *InvokeContext {
	return &InvokeContext{
		Env:      env,
		tx:       tx,
		accounts: accounts,
		limit:    computeLimit,
		logLimit: logLimit,
	}
}

// Tx 当前交易
func (c *InvokeContext) Tx() *types.Transaction {
	return c.tx
}

// AccountIndex 指令第 n 个账户在交易中的下标
func (c *InvokeContext) AccountIndex(ix *types.CompiledInstruction, n int) (int, error) {
	if n >= len(ix.Accounts) {
		return 0, types.ErrInvalidAccountIndex
	}
	i := int(ix.Accounts[n])
	if i >= len(c.accounts) {
		return 0, types.ErrInvalidAccountIndex
	}
	return i, nil
}

// Key 账户地址
func (c *InvokeContext) Key(i int) types.Pubkey {
	return c.tx.Message.AccountKeys[i]
}

// Account 只读访问, 账户不存在时返回空账户
func (c *InvokeContext) Account(i int) *types.Account {
	if c.accounts[i] == nil {
		return &types.Account{}
	}
	return c.accounts[i]
}

// Exists 账户是否存在
func (c *InvokeContext) Exists(i int) bool {
	return !c.accounts[i].IsEmpty()
}

// WritableAccount 可写访问, 账户不存在时创建一个空账户
func (c *InvokeContext) WritableAccount(i int) (*types.Account, error) {
	if !c.tx.Message.IsWritable(i) {
		return nil, types.ErrReadonlyModified
	}
	if c.accounts[i] == nil {
		c.accounts[i] = &types.Account{}
	}
	return c.accounts[i], nil
}

// IsSigner 是否签名
func (c *InvokeContext) IsSigner(i int) bool {
	return c.tx.Message.IsSigner(i)
}

// Consume 消耗计算单元, 超出上限返回 ErrComputeBudgetExceeded
func (c *InvokeContext) Consume(units uint64) error {
	if c.consumed+units > c.limit {
		c.consumed = c.limit
		return types.ErrComputeBudgetExceeded
	}
	c.consumed += units
	return nil
}

// Consumed 已经消耗的计算单元
func (c *InvokeContext) Consumed() uint64 {
	return c.consumed
}

// Log 记录程序日志, 超出长度限制之后只记录一次 "Log truncated"
func (c *InvokeContext) Log(format string, args ...interface{}) {
	if c.truncated {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c.logLimit > 0 && c.logBytes+len(msg) > c.logLimit {
		c.truncated = true
		c.logs = append(c.logs, "Log truncated")
		return
	}
	c.logBytes += len(msg)
	c.logs = append(c.logs, msg)
}

// Logs 日志
func (c *InvokeContext) Logs() []string {
	return c.logs
}

// Accounts 执行之后的账户
func (c *InvokeContext) Accounts() []*types.Account {
	return c.accounts
}
