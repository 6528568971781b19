// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/rlp"
)

// Account 账户状态
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      Pubkey
	Executable bool
	RentEpoch  uint64
}

// NewAccount 创建一个由 owner 管理的账户
func NewAccount(lamports uint64, space int, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     make([]byte, space),
		Owner:    owner,
	}
}

// Clone 深拷贝
func (acc *Account) Clone() *Account {
	if acc == nil {
		return nil
	}
	cp := *acc
	if acc.Data != nil {
		cp.Data = make([]byte, len(acc.Data))
		copy(cp.Data, acc.Data)
	}
	return &cp
}

// IsEmpty 余额为零并且没有数据, 账本中表示该账户已删除
func (acc *Account) IsEmpty() bool {
	return acc == nil || (acc.Lamports == 0 && len(acc.Data) == 0)
}

// IsNonce 系统程序管理的 durable nonce 账户
func (acc *Account) IsNonce() bool {
	return acc != nil && acc.Owner == SystemProgramID && len(acc.Data) == NonceAccountSize
}

// Equal 比较两个账户状态
func (acc *Account) Equal(other *Account) bool {
	if acc == nil || other == nil {
		return acc == other
	}
	return acc.Lamports == other.Lamports &&
		acc.Owner == other.Owner &&
		acc.Executable == other.Executable &&
		acc.RentEpoch == other.RentEpoch &&
		bytes.Equal(acc.Data, other.Data)
}

// EncodeAccount rlp 编码
func EncodeAccount(acc *Account) ([]byte, error) {
	return rlp.EncodeToBytes(acc)
}

// DecodeAccount rlp 解码
func DecodeAccount(data []byte) (*Account, error) {
	var acc Account
	if err := rlp.DecodeBytes(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// AccountDelta 单个账户在一笔交易中的状态变化, Prev 为 nil 表示之前不存在
type AccountDelta struct {
	Pubkey Pubkey
	Prev   *Account
	Post   *Account
}
