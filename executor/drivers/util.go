// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drivers

import (
	"github.com/33cn/blockstage/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeInstruction 指令数据: 1 字节类型 + rlp 编码的参数, payload 为 nil 时没有参数
func EncodeInstruction(tag byte, payload interface{}) []byte {
	data := []byte{tag}
	if payload == nil {
		return data
	}
	b, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic(err)
	}
	return append(data, b...)
}

// SplitInstruction 拆分指令类型以及参数
func SplitInstruction(data []byte) (byte, []byte, error) {
	if len(data) == 0 {
		return 0, nil, types.ErrInvalidInstructionData
	}
	return data[0], data[1:], nil
}

// DecodePayload 解码指令参数
func DecodePayload(payload []byte, v interface{}) error {
	if err := rlp.DecodeBytes(payload, v); err != nil {
		return types.ErrInvalidInstructionData
	}
	return nil
}
