// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor

import (
	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/executor/drivers/computebudget"
	"github.com/33cn/blockstage/types"
	"github.com/pkg/errors"
)

// ExecOptions 执行参数
type ExecOptions struct {
	// 0 表示不限制
	LogMessagesBytesLimit int
}

// CalculateFee 手续费 = 签名数 * 每签名费用 + 优先费
func (b *Bank) CalculateFee(tx *types.Transaction, limits *computebudget.Limits) (fee uint64, priority uint64) {
	priority = limits.PrioritizationFee()
	fee = uint64(tx.Message.Header.NumRequiredSignatures)*b.lamportsPerSignature + priority
	if fee < priority {
		fee = ^uint64(0)
	}
	return fee, priority
}

func sameAccount(a, b *types.Account) bool {
	if a.IsEmpty() && b.IsEmpty() {
		return true
	}
	return a.Equal(b)
}

func checkSignatures(tx *types.Transaction) error {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n == 0 || len(tx.Signatures) != n || len(tx.Message.AccountKeys) < n {
		return types.ErrMissingSignature
	}
	for _, sig := range tx.Signatures {
		if sig == (types.Signature{}) {
			return types.ErrMissingSignature
		}
	}
	return nil
}

// ExecuteTransaction 执行交易, 结果只是暂存, 需要调用 Commit 才会写入账本
// 返回 error 表示交易没有被处理 (不收手续费); 返回结果的 Status 不为 nil 表示收了手续费但执行失败
func (b *Bank) ExecuteTransaction(loader AccountLoader, tx *types.Transaction, opts ExecOptions) (*types.ProcessedTransaction, error) {
	if err := checkSignatures(tx); err != nil {
		return nil, err
	}
	sig := tx.Signature()
	if b.HasSignature(sig) {
		return nil, types.ErrAlreadyProcessed
	}
	limits, err := computebudget.ParseLimits(tx)
	if err != nil {
		return nil, err
	}
	fee, priority := b.CalculateFee(tx, limits)

	keys := tx.Message.AccountKeys
	loaded := make([]*types.Account, len(keys))
	var dataSize uint32
	for i, key := range keys {
		if !tx.Message.IsWritable(i) && drivers.IsProgram(key) {
			continue
		}
		acc, err := loader.LoadAccount(key)
		if err != nil {
			return nil, errors.Wrapf(err, "load account %s", key)
		}
		if acc != nil {
			dataSize += uint32(len(acc.Data))
		}
		loaded[i] = acc
	}
	payer := loaded[0]
	if payer.IsEmpty() {
		return nil, types.ErrAccountNotFound
	}
	if payer.Lamports < fee {
		return nil, types.ErrInsufficientFundsForFee
	}

	//扣除手续费之后的状态, 执行失败时只保留这一部分
	feePaid := payer.Clone()
	feePaid.Lamports -= fee

	working := make([]*types.Account, len(keys))
	for i := range loaded {
		working[i] = loaded[i].Clone()
	}
	working[0] = feePaid.Clone()

	ptx := &types.ProcessedTransaction{
		Signature:              sig,
		MessageHash:            tx.MessageHash(),
		Fee:                    fee,
		PrioritizationFee:      priority,
		ComputeUnitLimit:       limits.ComputeUnitLimit,
		ComputeUnitPrice:       limits.ComputeUnitPrice,
		LoadedAccountsDataSize: dataSize,
		IsVote:                 tx.IsSimpleVote(),
		Tx:                     tx,
	}
	env := drivers.Env{Slot: b.slot, Blockhash: b.LastBlockhash(), LamportsPerSignature: b.lamportsPerSignature}
	ctx := drivers.NewInvokeContext(env, tx, working, uint64(limits.ComputeUnitLimit), opts.LogMessagesBytesLimit)
	status := b.runInstructions(ctx)
	if status == nil {
		for i := range keys {
			if !tx.Message.IsWritable(i) && !sameAccount(loaded[i], working[i]) {
				status = types.ErrReadonlyModified
				break
			}
		}
	}
	ptx.Status = status
	ptx.ComputeUnitsConsumed = ctx.Consumed()
	ptx.LogMessages = ctx.Logs()

	if status != nil {
		ptx.Deltas = []types.AccountDelta{{Pubkey: keys[0], Prev: payer, Post: feePaid}}
		return ptx, nil
	}
	for i, key := range keys {
		if !tx.Message.IsWritable(i) {
			continue
		}
		if i != 0 && sameAccount(loaded[i], working[i]) {
			continue
		}
		ptx.Deltas = append(ptx.Deltas, types.AccountDelta{Pubkey: key, Prev: loaded[i], Post: working[i]})
	}
	return ptx, nil
}

func (b *Bank) runInstructions(ctx *drivers.InvokeContext) error {
	tx := ctx.Tx()
	for i := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[i]
		programID := tx.ProgramID(ix)
		driver, err := drivers.LoadDriver(programID)
		if err != nil {
			ctx.Log("Program %s failed: unknown program", programID)
			return types.ErrUnknownProgram
		}
		ctx.Log("Program %s invoke [1]", programID)
		if err := ctx.Consume(uint64(driver.ComputeUnits())); err != nil {
			ctx.Log("Program %s failed: %v", programID, err)
			return err
		}
		if err := driver.Exec(ctx, ix); err != nil {
			ctx.Log("Program %s failed: %v", programID, err)
			return err
		}
		ctx.Log("Program %s success", programID)
	}
	return nil
}
