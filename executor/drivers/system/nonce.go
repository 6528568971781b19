// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import (
	"encoding/binary"

	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/types"
)

// nonce 账户数据布局:
// [0:4] 状态 [4:36] authority [36:68] durable blockhash [68:76] lamports per signature
const (
	nonceUninitialized uint32 = 0
	nonceInitialized   uint32 = 1
)

// NonceState nonce 账户状态
type NonceState struct {
	Initialized          bool
	Authority            types.Pubkey
	Blockhash            types.Hash
	LamportsPerSignature uint64
}

// DecodeNonce 解析 nonce 账户数据
func DecodeNonce(acc *types.Account) (*NonceState, error) {
	if !acc.IsNonce() {
		return nil, types.ErrInvalidAccountOwner
	}
	var state NonceState
	state.Initialized = binary.LittleEndian.Uint32(acc.Data[0:4]) == nonceInitialized
	copy(state.Authority[:], acc.Data[4:36])
	copy(state.Blockhash[:], acc.Data[36:68])
	state.LamportsPerSignature = binary.LittleEndian.Uint64(acc.Data[68:76])
	return &state, nil
}

func encodeNonce(state *NonceState, data []byte) {
	status := nonceUninitialized
	if state.Initialized {
		status = nonceInitialized
	}
	binary.LittleEndian.PutUint32(data[0:4], status)
	copy(data[4:36], state.Authority[:])
	copy(data[36:68], state.Blockhash[:])
	binary.LittleEndian.PutUint64(data[68:76], state.LamportsPerSignature)
}

func (s *System) nonceAccount(ctx *drivers.InvokeContext, ix *types.CompiledInstruction) (*types.Account, *NonceState, error) {
	index, err := ctx.AccountIndex(ix, 0)
	if err != nil {
		return nil, nil, err
	}
	acc, err := ctx.WritableAccount(index)
	if err != nil {
		return nil, nil, err
	}
	state, err := DecodeNonce(acc)
	if err != nil {
		return nil, nil, err
	}
	return acc, state, nil
}

func (s *System) initializeNonce(ctx *drivers.InvokeContext, ix *types.CompiledInstruction, authority types.Pubkey) error {
	acc, state, err := s.nonceAccount(ctx, ix)
	if err != nil {
		return err
	}
	if state.Initialized {
		return types.ErrAccountAlreadyInUse
	}
	state.Initialized = true
	state.Authority = authority
	state.Blockhash = ctx.Env.Blockhash
	state.LamportsPerSignature = ctx.Env.LamportsPerSignature
	encodeNonce(state, acc.Data)
	return nil
}

func (s *System) advanceNonce(ctx *drivers.InvokeContext, ix *types.CompiledInstruction) error {
	acc, state, err := s.nonceAccount(ctx, ix)
	if err != nil {
		return err
	}
	if !state.Initialized {
		return types.ErrInvalidAccountOwner
	}
	authIndex, err := ctx.AccountIndex(ix, 1)
	if err != nil {
		return err
	}
	if ctx.Key(authIndex) != state.Authority || !ctx.IsSigner(authIndex) {
		return types.ErrMissingSignature
	}
	if state.Blockhash == ctx.Env.Blockhash {
		ctx.Log("Advance nonce account: nonce can only advance once per slot")
		return types.ErrNonceBlockhashNotExpired
	}
	state.Blockhash = ctx.Env.Blockhash
	state.LamportsPerSignature = ctx.Env.LamportsPerSignature
	encodeNonce(state, acc.Data)
	return nil
}

// DurableNonce 第一条指令为 AdvanceNonce 的交易使用 nonce 账户中的 blockhash, 返回 nonce 账户地址
func DurableNonce(tx *types.Transaction) (types.Pubkey, bool) {
	if len(tx.Message.Instructions) == 0 {
		return types.Pubkey{}, false
	}
	ix := &tx.Message.Instructions[0]
	if tx.ProgramID(ix) != types.SystemProgramID || len(ix.Data) != 1 || ix.Data[0] != TyAdvanceNonce || len(ix.Accounts) == 0 {
		return types.Pubkey{}, false
	}
	i := int(ix.Accounts[0])
	if i >= len(tx.Message.AccountKeys) || !tx.Message.IsWritable(i) {
		return types.Pubkey{}, false
	}
	return tx.Message.AccountKeys[i], true
}
