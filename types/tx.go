// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/rlp"
)

// AccountMeta 指令引用的账户以及权限
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta 可写账户
func NewAccountMeta(key Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta 只读账户
func NewReadonlyAccountMeta(key Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: isSigner}
}

// Instruction 未编译的指令
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// MessageHeader 账户权限划分
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction 账户用下标引用的指令
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []byte
	Data           []byte
}

// Message 交易消息体
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// Transaction 已经解析和静态检查过的交易
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewMessage 编译指令, 账户顺序: 付款人, 可写签名, 只读签名, 可写非签名, 只读非签名
func NewMessage(instructions []Instruction, payer Pubkey, blockhash Hash) Message {
	type meta struct {
		signer   bool
		writable bool
	}
	metas := map[Pubkey]*meta{payer: {signer: true, writable: true}}
	order := []Pubkey{payer}
	add := func(key Pubkey, signer, writable bool) {
		m, ok := metas[key]
		if !ok {
			m = &meta{}
			metas[key] = m
			order = append(order, key)
		}
		m.signer = m.signer || signer
		m.writable = m.writable || writable
	}
	for _, ix := range instructions {
		for _, am := range ix.Accounts {
			add(am.Pubkey, am.IsSigner, am.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	var ws, rs, wu, ru []Pubkey
	for _, key := range order[1:] {
		m := metas[key]
		switch {
		case m.signer && m.writable:
			ws = append(ws, key)
		case m.signer:
			rs = append(rs, key)
		case m.writable:
			wu = append(wu, key)
		default:
			ru = append(ru, key)
		}
	}
	keys := make([]Pubkey, 0, len(order))
	keys = append(keys, payer)
	keys = append(keys, ws...)
	keys = append(keys, rs...)
	keys = append(keys, wu...)
	keys = append(keys, ru...)

	index := make(map[Pubkey]uint8, len(keys))
	for i, key := range keys {
		index[key] = uint8(i)
	}
	msg := Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(1 + len(ws) + len(rs)),
			NumReadonlySignedAccounts:   uint8(len(rs)),
			NumReadonlyUnsignedAccounts: uint8(len(ru)),
		},
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
	}
	for _, ix := range instructions {
		ci := CompiledInstruction{ProgramIDIndex: index[ix.ProgramID], Data: ix.Data}
		for _, am := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, index[am.Pubkey])
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg
}

// Serialize 消息的 rlp 编码, 签名以及 hash 都基于这个结果
func (m *Message) Serialize() []byte {
	data, err := rlp.EncodeToBytes(m)
	if err != nil {
		panic(err)
	}
	return data
}

// Hash 消息 hash
func (m *Message) Hash() Hash {
	return sha256.Sum256(m.Serialize())
}

// IsSigner 第 i 个账户是否签名
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable 第 i 个账户是否可写
func (m *Message) IsWritable(i int) bool {
	if i >= len(m.AccountKeys) {
		return false
	}
	numSigned := int(m.Header.NumRequiredSignatures)
	if i < numSigned {
		return i < numSigned-int(m.Header.NumReadonlySignedAccounts)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsignedAccounts)
}

// NewTransaction 编译并签名, 第一个 signer 为付款人
func NewTransaction(instructions []Instruction, blockhash Hash, signers ...*Keypair) *Transaction {
	if len(signers) == 0 {
		panic("NewTransaction: no signer")
	}
	tx := &Transaction{Message: NewMessage(instructions, signers[0].Pubkey(), blockhash)}
	tx.Sign(signers...)
	return tx
}

// Sign 按账户顺序签名, 缺失的签名保持为零值
func (tx *Transaction) Sign(signers ...*Keypair) {
	n := int(tx.Message.Header.NumRequiredSignatures)
	tx.Signatures = make([]Signature, n)
	data := tx.Message.Serialize()
	for _, kp := range signers {
		for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
			if tx.Message.AccountKeys[i] == kp.Pubkey() {
				tx.Signatures[i] = kp.Sign(data)
			}
		}
	}
}

// Signature 第一个签名, 交易的唯一标识
func (tx *Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// FeePayer 付款人
func (tx *Transaction) FeePayer() Pubkey {
	if len(tx.Message.AccountKeys) == 0 {
		return Pubkey{}
	}
	return tx.Message.AccountKeys[0]
}

// MessageHash 交易写入排序日志的 mixin
func (tx *Transaction) MessageHash() Hash {
	return tx.Message.Hash()
}

// Signers 需要签名的账户
func (tx *Transaction) Signers() []Pubkey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		n = len(tx.Message.AccountKeys)
	}
	return tx.Message.AccountKeys[:n]
}

// WritableKeys 可写账户
func (tx *Transaction) WritableKeys() []Pubkey {
	var keys []Pubkey
	for i, key := range tx.Message.AccountKeys {
		if tx.Message.IsWritable(i) {
			keys = append(keys, key)
		}
	}
	return keys
}

// ReadonlyKeys 只读账户
func (tx *Transaction) ReadonlyKeys() []Pubkey {
	var keys []Pubkey
	for i, key := range tx.Message.AccountKeys {
		if !tx.Message.IsWritable(i) {
			keys = append(keys, key)
		}
	}
	return keys
}

// ProgramID 指令对应的程序
func (tx *Transaction) ProgramID(ix *CompiledInstruction) Pubkey {
	if int(ix.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
		return Pubkey{}
	}
	return tx.Message.AccountKeys[ix.ProgramIDIndex]
}

// IsSimpleVote 只包含投票指令的交易
func (tx *Transaction) IsSimpleVote() bool {
	if len(tx.Message.Instructions) == 0 {
		return false
	}
	for i := range tx.Message.Instructions {
		if tx.ProgramID(&tx.Message.Instructions[i]) != VoteProgramID {
			return false
		}
	}
	return true
}

// EncodeTransaction 交易的网络编码
func EncodeTransaction(tx *Transaction) ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DecodeTransaction 解码网络上收到的交易
func DecodeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := rlp.DecodeBytes(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
