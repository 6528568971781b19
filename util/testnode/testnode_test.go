// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testnode

import (
	"math/rand"
	"testing"

	"github.com/33cn/blockstage/blockstage"
	"github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/types"
	"github.com/33cn/blockstage/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) *BlockstageMock {
	cfg := GetDefaultConfig()
	cfg.Log.LogConsoleLevel = "error"
	mock, err := New(cfg)
	require.Nil(t, err)
	t.Cleanup(func() {
		mock.Close()
		log.DisableLog()
	})
	return mock
}

func TestRandomWorkload(t *testing.T) {
	mock := newMock(t)
	payers := util.GenKeypairs(32)
	require.Nil(t, util.FundKeypairs(mock.Bank(), payers, types.LamportsPerSol))
	r := rand.New(rand.NewSource(1))

	for slot := types.Slot(2); slot < 5; slot++ {
		require.Nil(t, mock.NewSlot(slot))
		txs := util.GenRandomTransfers(r, payers, 1000, mock.Bank().LastBlockhash())
		out := mock.ProcessBlock(txs, util.MaxAges(len(txs), 150))
		require.Nil(t, out.CommitResult)
		assert.Equal(t, uint64(len(txs)), out.Counts.Committed)
		assert.Equal(t, uint64(len(txs)), mock.Bank().TransactionCount())
	}
	_, entries, ok := mock.Poh().Entries(4)
	require.True(t, ok)
	assert.NotEqual(t, 0, len(entries))
	assert.Equal(t, uint64(3), mock.Committer().Stats().Commits)

	//新的 slot 确定了上一个 slot 的优先费
	mock.FeeCache().Flush()
	assert.Equal(t, 3, mock.FeeCache().AvailableSlots())
}

func TestSequentialWorkload(t *testing.T) {
	mock := newMock(t)
	keys := util.GenKeypairs(9)
	require.Nil(t, mock.Bank().Deposit(keys[0].Pubkey(), types.LamportsPerSol))
	fee := mock.Bank().LamportsPerSignature()
	txs, err := util.GenSequentialTransfers(keys, 1000000, fee, mock.Bank().LastBlockhash())
	require.Nil(t, err)
	out := mock.ProcessBlock(txs, util.MaxAges(len(txs), types.MaxAgeUnbounded))
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(len(txs)), out.Counts.Succeeded)
	assert.Equal(t, uint64(1000000)-uint64(len(txs)-1)*fee, mock.Bank().GetBalance(keys[8].Pubkey()))

	_, err = util.GenSequentialTransfers(keys, 10, fee, mock.Bank().LastBlockhash())
	assert.Equal(t, types.ErrInvalidParam, errors.Cause(err))
}

func TestHarmonicBlock(t *testing.T) {
	mock := newMock(t)
	payer := util.GenKeypairs(1)[0]
	to := types.NewUniquePubkey()
	require.Nil(t, mock.Bank().Deposit(payer.Pubkey(), types.LamportsPerSol))
	data, err := types.EncodeTransaction(util.CreateTransferTx(payer, to, 7, mock.Bank().LastBlockhash()))
	require.Nil(t, err)

	out, invalid := mock.ProcessHarmonicBlock(blockstage.NewHarmonicBlock([][]byte{data, {1}}, 1))
	assert.Equal(t, 1, invalid)
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(7), mock.Bank().GetBalance(to))

	//过时的目标 slot
	require.Nil(t, mock.NewSlot(2))
	out, _ = mock.ProcessHarmonicBlock(blockstage.NewHarmonicBlock([][]byte{data}, 1))
	assert.Equal(t, types.ErrSlotMismatch, errors.Cause(out.CommitResult))
}

func TestOverrides(t *testing.T) {
	mock := newMock(t)
	payer := util.GenKeypairs(1)[0]
	to := types.NewUniquePubkey()
	mock.Overrides().Set(payer.Pubkey(), types.NewAccount(types.LamportsPerSol, 0, types.SystemProgramID))
	tx := util.CreateTransferTx(payer, to, 9, mock.Bank().LastBlockhash())
	out := mock.ProcessBlock([]*types.Transaction{tx}, util.MaxAges(1, types.MaxAgeUnbounded))
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(9), mock.Bank().GetBalance(to))
	assert.Equal(t, types.LamportsPerSol-9-mock.Bank().LamportsPerSignature(), mock.Bank().GetBalance(payer.Pubkey()))
}

func TestClosedSlotRetry(t *testing.T) {
	mock := newMock(t)
	payer := util.GenKeypairs(1)[0]
	require.Nil(t, mock.Bank().Deposit(payer.Pubkey(), types.LamportsPerSol))
	txs := []*types.Transaction{util.CreateTransferTx(payer, types.NewUniquePubkey(), 1, mock.Bank().LastBlockhash())}
	mock.Poh().CloseSlot()
	out := mock.ProcessBlock(txs, util.MaxAges(1, 150))
	require.True(t, types.IsSubmissionRejected(out.CommitResult))
	assert.Equal(t, []int{0}, out.RetryableIndexes)

	//在下一个 slot 重试
	require.Nil(t, mock.NewSlot(2))
	retry := []*types.Transaction{txs[out.RetryableIndexes[0]]}
	out = mock.ProcessBlock(retry, util.MaxAges(1, 150))
	require.Nil(t, out.CommitResult)
	assert.True(t, out.Transactions[0].Committed)
}
