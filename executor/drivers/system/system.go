// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

/*
system 是内置的系统程序

主要提供以下操作：
CreateAccount   -> 创建账户并指定 owner
Transfer        -> 转账
AdvanceNonce    -> 推进 durable nonce
InitializeNonce -> 初始化 nonce 账户
*/

import (
	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
)

var slog = log.New("module", "execs.system")

// 指令类型
const (
	TyCreateAccount   = 0
	TyTransfer        = 2
	TyAdvanceNonce    = 4
	TyInitializeNonce = 6
)

// CreateAccountAction 创建账户参数
type CreateAccountAction struct {
	Lamports uint64
	Space    uint64
	Owner    types.Pubkey
}

// TransferAction 转账参数
type TransferAction struct {
	Lamports uint64
}

// InitializeNonceAction 初始化 nonce 参数
type InitializeNonceAction struct {
	Authority types.Pubkey
}

// MaxPermittedDataLength 账户数据最大长度
const MaxPermittedDataLength = 10 * 1024 * 1024

func init() {
	drivers.Register(func() drivers.Driver { return &System{} })
}

// System driver
type System struct{}

// GetName name
func (s *System) GetName() string {
	return "system"
}

// ProgramID 程序地址
func (s *System) ProgramID() types.Pubkey {
	return types.SystemProgramID
}

// ComputeUnits 每条指令的消耗
func (s *System) ComputeUnits() uint32 {
	return types.DefaultInstructionCompute
}

// Exec 执行一条系统指令
func (s *System) Exec(ctx *drivers.InvokeContext, ix *types.CompiledInstruction) error {
	tag, payload, err := drivers.SplitInstruction(ix.Data)
	if err != nil {
		return err
	}
	switch tag {
	case TyCreateAccount:
		var action CreateAccountAction
		if err := drivers.DecodePayload(payload, &action); err != nil {
			return err
		}
		return s.createAccount(ctx, ix, &action)
	case TyTransfer:
		var action TransferAction
		if err := drivers.DecodePayload(payload, &action); err != nil {
			return err
		}
		return s.transfer(ctx, ix, action.Lamports)
	case TyAdvanceNonce:
		return s.advanceNonce(ctx, ix)
	case TyInitializeNonce:
		var action InitializeNonceAction
		if err := drivers.DecodePayload(payload, &action); err != nil {
			return err
		}
		return s.initializeNonce(ctx, ix, action.Authority)
	}
	slog.Debug("Exec unknown instruction", "tag", tag)
	return types.ErrInvalidInstructionData
}

// 付款账户必须签名, 由系统程序管理并且没有数据
func (s *System) debitable(ctx *drivers.InvokeContext, i int) (*types.Account, error) {
	if !ctx.IsSigner(i) {
		return nil, types.ErrMissingSignature
	}
	from, err := ctx.WritableAccount(i)
	if err != nil {
		return nil, err
	}
	if from.Owner != types.SystemProgramID || len(from.Data) != 0 {
		return nil, types.ErrInvalidAccountOwner
	}
	return from, nil
}

func (s *System) transfer(ctx *drivers.InvokeContext, ix *types.CompiledInstruction, lamports uint64) error {
	fromIndex, err := ctx.AccountIndex(ix, 0)
	if err != nil {
		return err
	}
	toIndex, err := ctx.AccountIndex(ix, 1)
	if err != nil {
		return err
	}
	from, err := s.debitable(ctx, fromIndex)
	if err != nil {
		return err
	}
	if from.Lamports < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return types.ErrInsufficientFunds
	}
	to, err := ctx.WritableAccount(toIndex)
	if err != nil {
		return err
	}
	if to.Lamports+lamports < to.Lamports {
		return types.ErrInvalidParam
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func (s *System) createAccount(ctx *drivers.InvokeContext, ix *types.CompiledInstruction, action *CreateAccountAction) error {
	fromIndex, err := ctx.AccountIndex(ix, 0)
	if err != nil {
		return err
	}
	toIndex, err := ctx.AccountIndex(ix, 1)
	if err != nil {
		return err
	}
	if !ctx.IsSigner(toIndex) {
		return types.ErrMissingSignature
	}
	if action.Space > MaxPermittedDataLength {
		return types.ErrInvalidParam
	}
	if ctx.Exists(toIndex) {
		ctx.Log("Create Account: account %s already in use", ctx.Key(toIndex))
		return types.ErrAccountAlreadyInUse
	}
	from, err := s.debitable(ctx, fromIndex)
	if err != nil {
		return err
	}
	if from.Lamports < action.Lamports {
		return types.ErrInsufficientFunds
	}
	to, err := ctx.WritableAccount(toIndex)
	if err != nil {
		return err
	}
	from.Lamports -= action.Lamports
	to.Lamports += action.Lamports
	to.Data = make([]byte, action.Space)
	to.Owner = action.Owner
	return nil
}
