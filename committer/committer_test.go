// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package committer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/33cn/blockstage/executor/drivers/system"
	"github.com/33cn/blockstage/executor/drivers/vote"
	"github.com/33cn/blockstage/types"
	perrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	DisableLog()
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Slot() types.Slot {
	return m.Called().Get(0).(types.Slot)
}

func (m *mockLedger) BankID() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *mockLedger) Commit(processed []*types.ProcessedTransaction) error {
	return m.Called(processed).Error(0)
}

type feeRecorder struct {
	mu      sync.Mutex
	slot    types.Slot
	updates []types.FeeUpdate
}

func (f *feeRecorder) Update(slot types.Slot, bankID uint64, updates []types.FeeUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = slot
	f.updates = append(f.updates, updates...)
}

func newLedger(commitErr error) *mockLedger {
	l := &mockLedger{}
	l.On("Slot").Return(types.Slot(3))
	l.On("BankID").Return(uint64(9))
	l.On("Commit", mock.Anything).Return(commitErr)
	return l
}

func processedTransfer(price uint64) *types.ProcessedTransaction {
	payer := types.NewKeypair()
	to := types.NewUniquePubkey()
	tx := types.NewTransaction([]types.Instruction{system.Transfer(payer.Pubkey(), to, 1)}, types.Hash{1}, payer)
	return &types.ProcessedTransaction{
		Signature:            tx.Signature(),
		MessageHash:          tx.MessageHash(),
		ComputeUnitPrice:     price,
		ComputeUnitsConsumed: 150,
		Tx:                   tx,
	}
}

func processedVote(status error) *types.ProcessedTransaction {
	auth := types.NewKeypair()
	voteAcc := types.NewUniquePubkey()
	v := &types.Vote{Slots: []uint64{1, 2}, Hash: types.Hash{2}}
	tx := types.NewTransaction([]types.Instruction{vote.NewVoteInstruction(voteAcc, auth.Pubkey(), v)}, types.Hash{1}, auth)
	return &types.ProcessedTransaction{
		Signature: tx.Signature(),
		Status:    status,
		IsVote:    true,
		Tx:        tx,
	}
}

func TestCommit(t *testing.T) {
	sender, receiver := NewReplayVoteChannel()
	fees := &feeRecorder{}
	c := New(sender, fees)
	ledger := newLedger(nil)

	transfer := processedTransfer(100)
	failedTransfer := processedTransfer(0)
	failedTransfer.Status = types.ErrInsufficientFunds
	goodVote := processedVote(nil)
	badVote := processedVote(types.ErrVoteTooOld)
	processed := []*types.ProcessedTransaction{transfer, goodVote, failedTransfer, badVote}

	out, err := c.Commit(ledger, processed)
	require.Nil(t, err)
	ledger.AssertCalled(t, "Commit", processed)
	require.Equal(t, 4, len(out.Details))
	for _, d := range out.Details {
		assert.True(t, d.Committed)
	}
	assert.Equal(t, uint64(150), out.Details[0].ComputeUnits)
	assert.Equal(t, types.ErrInsufficientFunds, out.Details[2].Status)
	assert.Equal(t, 1, out.VotesForwarded)
	assert.Equal(t, 2, out.FeeUpdates)

	v, ok := receiver.TryRecv()
	require.True(t, ok)
	assert.Equal(t, goodVote.Signature, v.Signature)
	assert.Equal(t, []uint64{1, 2}, v.Vote.Slots)
	_, ok = receiver.TryRecv()
	assert.False(t, ok)

	assert.Equal(t, types.Slot(3), fees.slot)
	require.Equal(t, 2, len(fees.updates))
	assert.Equal(t, uint64(100), fees.updates[0].ComputeUnitPrice)
	assert.Equal(t, transfer.Tx.WritableKeys(), fees.updates[0].WritableAccounts)
	assert.Equal(t, uint64(1), c.Stats().Commits)
}

func TestCommitApplyFailure(t *testing.T) {
	sender, receiver := NewReplayVoteChannel()
	fees := &feeRecorder{}
	c := New(sender, fees)
	ledger := newLedger(errors.New("disk full"))

	out, err := c.Commit(ledger, []*types.ProcessedTransaction{processedTransfer(1), processedVote(nil)})
	assert.Nil(t, out)
	assert.Equal(t, types.ErrLedgerApply, perrors.Cause(err))
	assert.True(t, types.IsFatal(err))
	assert.Contains(t, err.Error(), "disk full")
	//失败时不转发投票, 不更新手续费
	assert.Equal(t, 0, receiver.Len())
	assert.Equal(t, 0, len(fees.updates))
	assert.Equal(t, uint64(1), c.Stats().ApplyFailures)
}

func TestVoteChannelClosed(t *testing.T) {
	sender, receiver := NewReplayVoteChannel()
	receiver.Close()
	c := New(sender, nil)
	out, err := c.Commit(newLedger(nil), []*types.ProcessedTransaction{processedVote(nil), processedTransfer(5)})
	require.Nil(t, err)
	assert.Equal(t, 1, out.VotesDropped)
	assert.Equal(t, 0, out.FeeUpdates)
	assert.Equal(t, uint64(1), c.Stats().VotesDropped)

	//没有发送端也可以提交
	c = New(nil, nil)
	out, err = c.Commit(newLedger(nil), []*types.ProcessedTransaction{processedVote(nil)})
	require.Nil(t, err)
	assert.Equal(t, 0, out.VotesForwarded)
}

func TestVoteChannelRecv(t *testing.T) {
	sender, receiver := NewReplayVoteChannel()
	//不阻塞, 没有容量限制
	for i := 0; i < 10000; i++ {
		require.Nil(t, sender.TrySend(&types.ParsedVote{Vote: types.Vote{Timestamp: uint64(i)}}))
	}
	assert.Equal(t, 10000, receiver.Len())

	done := make(chan int)
	go func() {
		n := 0
		for {
			v, ok := receiver.Recv()
			if !ok {
				done <- n
				return
			}
			assert.Equal(t, uint64(n), v.Vote.Timestamp)
			n++
		}
	}()
	time.Sleep(10 * time.Millisecond)
	require.Nil(t, sender.TrySend(&types.ParsedVote{Vote: types.Vote{Timestamp: 10000}}))
	sender.Close()
	assert.Equal(t, types.ErrChannelClosed, sender.TrySend(&types.ParsedVote{}))
	select {
	case n := <-done:
		assert.Equal(t, 10001, n)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver not finished")
	}
}
