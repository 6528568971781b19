// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package computebudget

import (
	"testing"

	"github.com/33cn/blockstage/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transfer() types.Instruction {
	return types.Instruction{ProgramID: types.SystemProgramID, Data: []byte{2}}
}

func TestParseLimits(t *testing.T) {
	payer := types.NewKeypair()
	tx := types.NewTransaction([]types.Instruction{transfer(), transfer()}, types.Hash{}, payer)
	l, err := ParseLimits(tx)
	require.Nil(t, err)
	assert.Equal(t, 2*types.DefaultComputeUnitLimit, l.ComputeUnitLimit)
	assert.Equal(t, uint64(0), l.ComputeUnitPrice)
	assert.Equal(t, uint64(0), l.PrioritizationFee())

	ixs := make([]types.Instruction, 10)
	for i := range ixs {
		ixs[i] = transfer()
	}
	tx = types.NewTransaction(ixs, types.Hash{}, payer)
	l, err = ParseLimits(tx)
	require.Nil(t, err)
	assert.Equal(t, types.MaxComputeUnitLimit, l.ComputeUnitLimit)

	tx = types.NewTransaction([]types.Instruction{SetComputeUnitPrice(10), SetComputeUnitLimit(100), transfer()}, types.Hash{}, payer)
	l, err = ParseLimits(tx)
	require.Nil(t, err)
	assert.Equal(t, uint32(100), l.ComputeUnitLimit)
	assert.Equal(t, uint64(10), l.ComputeUnitPrice)
	//1000 micro lamports 向上取整
	assert.Equal(t, uint64(1), l.PrioritizationFee())

	tx = types.NewTransaction([]types.Instruction{SetComputeUnitPrice(10), SetComputeUnitPrice(20)}, types.Hash{}, payer)
	_, err = ParseLimits(tx)
	assert.Equal(t, types.ErrInvalidComputeBudget, err)

	tx = types.NewTransaction([]types.Instruction{{ProgramID: types.ComputeBudgetProgramID, Data: []byte{9}}}, types.Hash{}, payer)
	_, err = ParseLimits(tx)
	assert.Equal(t, types.ErrInvalidComputeBudget, err)
}

func TestPrioritizationFeeOverflow(t *testing.T) {
	l := &Limits{ComputeUnitLimit: types.MaxComputeUnitLimit, ComputeUnitPrice: ^uint64(0)}
	assert.Equal(t, ^uint64(0), l.PrioritizationFee())
}
