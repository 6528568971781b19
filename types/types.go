// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package types 区块执行流水线公共的数据结构，错误定义以及配置
package types

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Slot 账本高度，账本状态以及排序日志都按照 slot 编号
type Slot = uint64

// BankIdentity 工作 bank 的身份, 排序服务只接受和当前身份一致的提交
type BankIdentity struct {
	Slot   Slot
	BankID uint64
}

func (id BankIdentity) String() string {
	return fmt.Sprintf("slot:%d,bank:%d", id.Slot, id.BankID)
}

// 长度定义
const (
	HashLen      = 32
	PubkeyLen    = 32
	SignatureLen = 64
)

// Hash sha256 结果
type Hash [HashLen]byte

// Pubkey 账户地址
type Pubkey [PubkeyLen]byte

// Signature 交易签名
type Signature [SignatureLen]byte

// String base58
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// IsZero 是否为空 hash
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String base58
func (k Pubkey) String() string {
	return base58.Encode(k[:])
}

// Less 字节序比较
func (k Pubkey) Less(other Pubkey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

// String base58
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// ParseHash 从 base58 字符串解析 hash
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashLen {
		return h, ErrInvalidLength
	}
	copy(h[:], b)
	return h, nil
}

// ParsePubkey 从 base58 字符串解析地址
func ParsePubkey(s string) (Pubkey, error) {
	var k Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return k, err
	}
	if len(b) != PubkeyLen {
		return k, ErrInvalidLength
	}
	copy(k[:], b)
	return k, nil
}

// MustParsePubkey 解析失败直接 panic, 只用于常量
func MustParsePubkey(s string) Pubkey {
	k, err := ParsePubkey(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey %s: %v", s, err))
	}
	return k
}

// NewUniquePubkey 随机生成一个地址, 测试以及压测工具使用
func NewUniquePubkey() Pubkey {
	var k Pubkey
	if _, err := rand.Read(k[:]); err != nil {
		panic(err)
	}
	return k
}

// Keypair ed25519 密钥对
type Keypair struct {
	priv ed25519.PrivateKey
	pub  Pubkey
}

// NewKeypair 生成新的密钥对
func NewKeypair() *Keypair {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	kp := &Keypair{priv: priv}
	copy(kp.pub[:], pub)
	return kp
}

// Pubkey 公钥
func (kp *Keypair) Pubkey() Pubkey {
	return kp.pub
}

// Sign 对消息签名
func (kp *Keypair) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(kp.priv, msg))
	return sig
}
