// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import "math"

// 系统程序以及 sysvar 地址
var (
	SystemProgramID        = Pubkey{}
	VoteProgramID          = MustParsePubkey("Vote111111111111111111111111111111111111111")
	ComputeBudgetProgramID = MustParsePubkey("ComputeBudget111111111111111111111111111111")
	SysvarSlotHistoryID    = MustParsePubkey("SysvarS1otHistory11111111111111111111111111")
	SysvarInstructionsID   = MustParsePubkey("Sysvar1nstructions1111111111111111111111111")
)

// coin conversation
const (
	LamportsPerSol uint64 = 1e9

	DefaultLamportsPerSignature uint64 = 5000
	// MicroLamportsPerLamport 优先费单价单位
	MicroLamportsPerLamport uint64 = 1e6

	DefaultComputeUnitLimit   uint32 = 200000
	MaxComputeUnitLimit       uint32 = 1400000
	DefaultInstructionCompute uint32 = 150
	VoteInstructionCompute    uint32 = 2100

	// NonceAccountSize nonce 账户数据长度
	NonceAccountSize = 80
	// MaxTxsPerBlock 单个区块最大交易数
	MaxTxsPerBlock = 100000
)

// MaxAge 交易有效期窗口: recent blockhash 所在 slot 到执行 slot 的最大距离
type MaxAge uint64

// MaxAgeUnbounded 不做过期检查
const MaxAgeUnbounded = MaxAge(math.MaxUint64)

// Exceeded 检查是否超出有效期
func (m MaxAge) Exceeded(blockhashSlot, slot Slot) bool {
	if m == MaxAgeUnbounded {
		return false
	}
	if blockhashSlot > slot {
		return false
	}
	return slot-blockhashSlot > uint64(m)
}
