// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vote 投票程序
package vote

import (
	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/types"
	"github.com/ethereum/go-ethereum/rlp"
	log "github.com/inconshreveable/log15"
)

var vlog = log.New("module", "execs.vote")

// 指令类型
const (
	TyInitializeAccount = 0
	TyVote              = 2
)

// MaxLockoutHistory 账户中保留的投票 slot 个数
const MaxLockoutHistory = 31

// InitializeAccountAction 初始化投票账户
type InitializeAccountAction struct {
	Authority types.Pubkey
}

// State 投票账户状态
type State struct {
	Authority types.Pubkey
	Slots     []uint64
	Hash      types.Hash
	Timestamp uint64
}

// LastVotedSlot 最后一个投票的 slot
func (s *State) LastVotedSlot() (types.Slot, bool) {
	if len(s.Slots) == 0 {
		return 0, false
	}
	return s.Slots[len(s.Slots)-1], true
}

// DecodeState 解析投票账户, 没有初始化返回 nil
func DecodeState(acc *types.Account) (*State, error) {
	if acc.Owner != types.VoteProgramID {
		return nil, types.ErrInvalidAccountOwner
	}
	if len(acc.Data) == 0 {
		return nil, nil
	}
	var state State
	if err := rlp.DecodeBytes(acc.Data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func encodeState(state *State) []byte {
	data, err := rlp.EncodeToBytes(state)
	if err != nil {
		panic(err)
	}
	return data
}

func init() {
	drivers.Register(func() drivers.Driver { return &Vote{} })
}

// Vote driver
type Vote struct{}

// GetName name
func (v *Vote) GetName() string {
	return "vote"
}

// ProgramID 程序地址
func (v *Vote) ProgramID() types.Pubkey {
	return types.VoteProgramID
}

// ComputeUnits 每条指令的消耗
func (v *Vote) ComputeUnits() uint32 {
	return types.VoteInstructionCompute
}

// Exec 执行投票指令
func (v *Vote) Exec(ctx *drivers.InvokeContext, ix *types.CompiledInstruction) error {
	tag, payload, err := drivers.SplitInstruction(ix.Data)
	if err != nil {
		return err
	}
	index, err := ctx.AccountIndex(ix, 0)
	if err != nil {
		return err
	}
	acc, err := ctx.WritableAccount(index)
	if err != nil {
		return err
	}
	state, err := DecodeState(acc)
	if err != nil {
		return types.ErrInvalidAccountOwner
	}
	switch tag {
	case TyInitializeAccount:
		var action InitializeAccountAction
		if err := drivers.DecodePayload(payload, &action); err != nil {
			return err
		}
		if state != nil {
			return types.ErrAccountAlreadyInUse
		}
		acc.Data = encodeState(&State{Authority: action.Authority})
		return nil
	case TyVote:
		var vote types.Vote
		if err := drivers.DecodePayload(payload, &vote); err != nil {
			return err
		}
		if state == nil {
			return types.ErrInvalidAccountOwner
		}
		authIndex, err := ctx.AccountIndex(ix, 1)
		if err != nil {
			return err
		}
		if ctx.Key(authIndex) != state.Authority || !ctx.IsSigner(authIndex) {
			return types.ErrMissingSignature
		}
		if err := processVote(state, &vote); err != nil {
			ctx.Log("Vote: %v, last voted %v", err, state.Slots)
			return err
		}
		acc.Data = encodeState(state)
		return nil
	}
	vlog.Debug("Exec unknown instruction", "tag", tag)
	return types.ErrInvalidInstructionData
}

// 只接受比最后一个投票更新的 slot
func processVote(state *State, vote *types.Vote) error {
	last, voted := state.LastVotedSlot()
	var fresh []uint64
	for _, slot := range vote.Slots {
		if voted && slot <= last {
			continue
		}
		if len(fresh) > 0 && slot <= fresh[len(fresh)-1] {
			return types.ErrInvalidInstructionData
		}
		fresh = append(fresh, slot)
	}
	if len(fresh) == 0 {
		return types.ErrVoteTooOld
	}
	state.Slots = append(state.Slots, fresh...)
	if len(state.Slots) > MaxLockoutHistory {
		state.Slots = state.Slots[len(state.Slots)-MaxLockoutHistory:]
	}
	state.Hash = vote.Hash
	state.Timestamp = vote.Timestamp
	return nil
}

// ParseVoteTransaction 解析投票交易, 用于转发给共识模块
func ParseVoteTransaction(tx *types.Transaction) (*types.ParsedVote, bool) {
	if !tx.IsSimpleVote() {
		return nil, false
	}
	for i := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[i]
		tag, payload, err := drivers.SplitInstruction(ix.Data)
		if err != nil || tag != TyVote || len(ix.Accounts) == 0 {
			continue
		}
		var vote types.Vote
		if err := drivers.DecodePayload(payload, &vote); err != nil {
			continue
		}
		k := int(ix.Accounts[0])
		if k >= len(tx.Message.AccountKeys) {
			continue
		}
		return &types.ParsedVote{
			VoteAccount: tx.Message.AccountKeys[k],
			Vote:        vote,
			Signature:   tx.Signature(),
		}, true
	}
	return nil, false
}

// NewVoteInstruction 构造投票指令
func NewVoteInstruction(voteAccount, authority types.Pubkey, vote *types.Vote) types.Instruction {
	return types.Instruction{
		ProgramID: types.VoteProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(voteAccount, false), types.NewReadonlyAccountMeta(authority, true)},
		Data:      drivers.EncodeInstruction(TyVote, vote),
	}
}

// InitializeAccount 构造初始化投票账户指令
func InitializeAccount(voteAccount, authority types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.VoteProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(voteAccount, false)},
		Data:      drivers.EncodeInstruction(TyInitializeAccount, &InitializeAccountAction{Authority: authority}),
	}
}
