// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package computebudget 计算预算程序, 指令在执行之前解析, 执行时只做检查
package computebudget

import (
	"github.com/33cn/blockstage/executor/drivers"
	"github.com/33cn/blockstage/types"
)

// 指令类型
const (
	TySetComputeUnitLimit = 2
	TySetComputeUnitPrice = 3
)

// SetComputeUnitLimitAction 计算单元上限
type SetComputeUnitLimitAction struct {
	Units uint32
}

// SetComputeUnitPriceAction 计算单元价格, 单位 micro lamports
type SetComputeUnitPriceAction struct {
	MicroLamports uint64
}

// Limits 交易的计算预算
type Limits struct {
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
}

// PrioritizationFee 优先费, 向上取整
func (l *Limits) PrioritizationFee() uint64 {
	if l.ComputeUnitPrice == 0 || l.ComputeUnitLimit == 0 {
		return 0
	}
	micro := l.ComputeUnitPrice * uint64(l.ComputeUnitLimit)
	if micro/uint64(l.ComputeUnitLimit) != l.ComputeUnitPrice {
		//溢出
		return ^uint64(0)
	}
	return (micro + types.MicroLamportsPerLamport - 1) / types.MicroLamportsPerLamport
}

func init() {
	drivers.Register(func() drivers.Driver { return &ComputeBudget{} })
}

// ComputeBudget driver
type ComputeBudget struct{}

// GetName name
func (c *ComputeBudget) GetName() string {
	return "computebudget"
}

// ProgramID 程序地址
func (c *ComputeBudget) ProgramID() types.Pubkey {
	return types.ComputeBudgetProgramID
}

// ComputeUnits 每条指令的消耗
func (c *ComputeBudget) ComputeUnits() uint32 {
	return types.DefaultInstructionCompute
}

// Exec 参数已经在 ParseLimits 中处理
func (c *ComputeBudget) Exec(ctx *drivers.InvokeContext, ix *types.CompiledInstruction) error {
	_, err := decode(ix.Data)
	return err
}

func decode(data []byte) (interface{}, error) {
	tag, payload, err := drivers.SplitInstruction(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TySetComputeUnitLimit:
		var action SetComputeUnitLimitAction
		err = drivers.DecodePayload(payload, &action)
		return &action, err
	case TySetComputeUnitPrice:
		var action SetComputeUnitPriceAction
		err = drivers.DecodePayload(payload, &action)
		return &action, err
	}
	return nil, types.ErrInvalidInstructionData
}

// ParseLimits 解析交易的计算预算, 同一类指令出现两次返回 ErrInvalidComputeBudget
// 没有设置上限时每条非预算指令默认 DefaultComputeUnitLimit, 总和不超过 MaxComputeUnitLimit
func ParseLimits(tx *types.Transaction) (*Limits, error) {
	var limit *uint32
	var price *uint64
	others := 0
	for i := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[i]
		if tx.ProgramID(ix) != types.ComputeBudgetProgramID {
			others++
			continue
		}
		action, err := decode(ix.Data)
		if err != nil {
			return nil, types.ErrInvalidComputeBudget
		}
		switch a := action.(type) {
		case *SetComputeUnitLimitAction:
			if limit != nil {
				return nil, types.ErrInvalidComputeBudget
			}
			limit = &a.Units
		case *SetComputeUnitPriceAction:
			if price != nil {
				return nil, types.ErrInvalidComputeBudget
			}
			price = &a.MicroLamports
		}
	}
	l := &Limits{}
	if limit != nil {
		l.ComputeUnitLimit = *limit
	} else {
		units := uint64(others) * uint64(types.DefaultComputeUnitLimit)
		if units > uint64(types.MaxComputeUnitLimit) {
			units = uint64(types.MaxComputeUnitLimit)
		}
		l.ComputeUnitLimit = uint32(units)
	}
	if l.ComputeUnitLimit > types.MaxComputeUnitLimit {
		l.ComputeUnitLimit = types.MaxComputeUnitLimit
	}
	if price != nil {
		l.ComputeUnitPrice = *price
	}
	return l, nil
}

// SetComputeUnitLimit 构造设置上限指令
func SetComputeUnitLimit(units uint32) types.Instruction {
	return types.Instruction{
		ProgramID: types.ComputeBudgetProgramID,
		Data:      drivers.EncodeInstruction(TySetComputeUnitLimit, &SetComputeUnitLimitAction{Units: units}),
	}
}

// SetComputeUnitPrice 构造设置价格指令
func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.ComputeBudgetProgramID,
		Data:      drivers.EncodeInstruction(TySetComputeUnitPrice, &SetComputeUnitPriceAction{MicroLamports: microLamports}),
	}
}
