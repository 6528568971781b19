// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import (
	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/types"
)

// Transfer 构造转账指令
func Transfer(from, to types.Pubkey, lamports uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(from, true), types.NewAccountMeta(to, false)},
		Data:      drivers.EncodeInstruction(TyTransfer, &TransferAction{Lamports: lamports}),
	}
}

// CreateAccount 构造创建账户指令, to 也需要签名
func CreateAccount(from, to types.Pubkey, lamports, space uint64, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(from, true), types.NewAccountMeta(to, true)},
		Data:      drivers.EncodeInstruction(TyCreateAccount, &CreateAccountAction{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// InitializeNonce 构造初始化 nonce 指令
func InitializeNonce(nonce, authority types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(nonce, false)},
		Data:      drivers.EncodeInstruction(TyInitializeNonce, &InitializeNonceAction{Authority: authority}),
	}
}

// AdvanceNonce 构造推进 nonce 指令
func AdvanceNonce(nonce, authority types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(nonce, false), types.NewReadonlyAccountMeta(authority, true)},
		Data:      drivers.EncodeInstruction(TyAdvanceNonce, nil),
	}
}

// CreateNonceAccount 创建并初始化 nonce 账户
func CreateNonceAccount(from, nonce, authority types.Pubkey, lamports uint64) []types.Instruction {
	return []types.Instruction{
		CreateAccount(from, nonce, lamports, types.NonceAccountSize, types.SystemProgramID),
		InitializeNonce(nonce, authority),
	}
}
