// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"testing"

	"github.com/33cn/blockstage/account"
	"github.com/33cn/blockstage/committer"
	dbm "github.com/33cn/blockstage/common/db"
	"github.com/33cn/blockstage/executor"
	"github.com/33cn/blockstage/executor/drivers/computebudget"
	"github.com/33cn/blockstage/executor/drivers/system"
	"github.com/33cn/blockstage/executor/drivers/vote"
	"github.com/33cn/blockstage/feecache"
	"github.com/33cn/blockstage/poh"
	"github.com/33cn/blockstage/queue"
	"github.com/33cn/blockstage/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	DisableLog()
	executor.DisableLog()
	poh.DisableLog()
	committer.DisableLog()
	feecache.DisableLog()
	queue.DisableLog()
}

const fee = types.DefaultLamportsPerSignature

type testEnv struct {
	genesis  *executor.Bank
	bank     *executor.Bank
	svc      *poh.Service
	recorder *poh.TransactionRecorder
	votes    *committer.ReplayVoteReceiver
	fees     *feecache.PrioritizationFeeCache
	consumer *BlockConsumer
}

func newTestEnv(t *testing.T, slot types.Slot, opts ...Option) *testEnv {
	cfg := types.DefaultConfig()
	db, err := dbm.NewDB("accounts", dbm.MemDBBackendStr, "", 0)
	require.Nil(t, err)
	genesis, err := executor.NewBank(&cfg.Ledger, account.NewAccountDB(db))
	require.Nil(t, err)
	genesisHash := genesis.LastBlockhash()
	bank, err := executor.NewFromParent(genesis, slot)
	require.Nil(t, err)
	bank.RegisterTick()

	q := queue.New("channel")
	svc := poh.New(&cfg.Poh, genesisHash)
	svc.SetQueueClient(q.Client())
	rec := poh.NewTransactionRecorder(q.Client(), &cfg.Poh)
	require.Nil(t, rec.Restart(bank.Identity()))

	sender, receiver := committer.NewReplayVoteChannel()
	fees := feecache.New(&cfg.FeeCache)
	t.Cleanup(func() {
		svc.Close()
		q.Close()
		fees.Close()
	})
	return &testEnv{
		genesis:  genesis,
		bank:     bank,
		svc:      svc,
		recorder: rec,
		votes:    receiver,
		fees:     fees,
		consumer: NewBlockConsumer(committer.New(sender, fees), rec, opts...),
	}
}

func (env *testEnv) funded(t *testing.T, lamports uint64) *types.Keypair {
	kp := types.NewKeypair()
	require.Nil(t, env.bank.Deposit(kp.Pubkey(), lamports))
	return kp
}

func (env *testEnv) transfer(from *types.Keypair, to types.Pubkey, lamports uint64) *types.Transaction {
	return types.NewTransaction([]types.Instruction{system.Transfer(from.Pubkey(), to, lamports)}, env.bank.LastBlockhash(), from)
}

func (env *testEnv) process(txs []*types.Transaction, maxAges []types.MaxAge) *BlockOutcome {
	if maxAges == nil {
		maxAges = make([]types.MaxAge, len(txs))
		for i := range maxAges {
			maxAges[i] = types.MaxAgeUnbounded
		}
	}
	return env.consumer.ProcessAndRecordBlockTransactions(env.bank, txs, maxAges, env.bank.Slot())
}

func (env *testEnv) recordedMixins(t *testing.T) []types.Hash {
	start, entries, ok := env.svc.Entries(env.bank.Slot())
	require.True(t, ok)
	require.True(t, poh.VerifyEntries(start, entries))
	var out []types.Hash
	for _, e := range entries {
		out = append(out, e.Mixins...)
	}
	return out
}

func TestSingleTransaction(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	to := types.NewUniquePubkey()
	tx := env.transfer(payer, to, 1000)

	out := env.process([]*types.Transaction{tx}, nil)
	require.Nil(t, out.CommitResult)
	assert.True(t, out.Committed())
	assert.Equal(t, uint64(1), out.Counts.Executed)
	assert.Equal(t, uint64(0), out.Counts.Rejected)
	assert.Equal(t, uint64(1), out.Counts.Succeeded)
	assert.Equal(t, uint64(1), out.Counts.Committed)
	require.NotNil(t, out.StartingTransactionIndex)
	assert.Equal(t, uint64(0), *out.StartingTransactionIndex)
	assert.True(t, out.Transactions[0].Committed)
	require.Equal(t, 1, len(out.CommitDetails))
	assert.Equal(t, out.Transactions[0].Processed.ComputeUnitsConsumed, out.CommitDetails[0].ComputeUnits)
	assert.True(t, out.CommitDetails[0].Committed)

	assert.Equal(t, uint64(1000), env.bank.GetBalance(to))
	assert.Equal(t, types.LamportsPerSol-1000-fee, env.bank.GetBalance(payer.Pubkey()))
	assert.True(t, env.bank.HasSignature(tx.Signature()))
	assert.Equal(t, []types.Hash{tx.MessageHash()}, env.recordedMixins(t))

	//第二个区块接着排序
	tx2 := env.transfer(payer, to, 1)
	out = env.process([]*types.Transaction{tx2}, nil)
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(1), *out.StartingTransactionIndex)
}

func TestExpiredExcluded(t *testing.T) {
	env := newTestEnv(t, 100)
	a := env.funded(t, types.LamportsPerSol)
	b := env.funded(t, types.LamportsPerSol)
	to := types.NewUniquePubkey()

	genesisHash := env.genesis.LastBlockhash()
	old := types.NewTransaction([]types.Instruction{system.Transfer(a.Pubkey(), to, 10)}, genesisHash, a)
	unknown := types.NewTransaction([]types.Instruction{system.Transfer(a.Pubkey(), to, 11)}, types.Hash{1, 2, 3}, a)
	fresh := env.transfer(b, to, 20)
	unbounded := types.NewTransaction([]types.Instruction{system.Transfer(a.Pubkey(), to, 30)}, genesisHash, a)

	txs := []*types.Transaction{old, fresh, unknown, unbounded}
	out := env.process(txs, []types.MaxAge{10, 10, types.MaxAgeUnbounded, types.MaxAgeUnbounded})
	require.Nil(t, out.CommitResult)
	assert.Equal(t, types.ErrTxExpired, out.Transactions[0].Err)
	assert.Nil(t, out.Transactions[0].Processed)
	assert.NotNil(t, out.Transactions[1].Processed)
	//没有过期限制时不检查 blockhash
	assert.NotNil(t, out.Transactions[2].Processed)
	assert.NotNil(t, out.Transactions[3].Processed)
	assert.Equal(t, uint64(1), out.ErrorCounters.Expired)
	assert.Equal(t, uint64(1), out.Counts.Rejected)
	assert.Equal(t, uint64(3), out.Counts.Executed)

	assert.Equal(t, []types.Hash{fresh.MessageHash(), unknown.MessageHash(), unbounded.MessageHash()}, env.recordedMixins(t))
	assert.Equal(t, out.Mixins(), env.recordedMixins(t))
	assert.Equal(t, uint64(20+11+30), env.bank.GetBalance(to))
}

func TestMixinOrder(t *testing.T) {
	env := newTestEnv(t, 1, WithWorkers(8))
	var txs []*types.Transaction
	var want []types.Hash
	for i := 0; i < 64; i++ {
		payer := env.funded(t, types.LamportsPerSol)
		tx := env.transfer(payer, types.NewUniquePubkey(), uint64(i+1))
		txs = append(txs, tx)
		want = append(want, tx.MessageHash())
	}
	out := env.process(txs, nil)
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(64), out.Counts.Committed)
	assert.Equal(t, want, env.recordedMixins(t))
	for i := range out.Transactions {
		assert.Equal(t, i, out.Transactions[i].Processed.Index)
	}
}

func TestDependencyChain(t *testing.T) {
	env := newTestEnv(t, 1)
	const n = 10
	keys := make([]*types.Keypair, n+1)
	for i := range keys {
		keys[i] = types.NewKeypair()
	}
	require.Nil(t, env.bank.Deposit(keys[0].Pubkey(), types.LamportsPerSol))

	amount := func(i int) uint64 {
		return 100000000 - uint64(i)*fee
	}
	txs := make([]*types.Transaction, n)
	for i := 0; i < n; i++ {
		txs[i] = env.transfer(keys[i], keys[i+1].Pubkey(), amount(i))
	}
	out := env.process(txs, nil)
	require.Nil(t, out.CommitResult)
	for i := range out.Transactions {
		require.NotNil(t, out.Transactions[i].Processed, "tx %d: %v", i, out.Transactions[i].Err)
		assert.Nil(t, out.Transactions[i].Processed.Status)
	}
	assert.Equal(t, uint64(n), out.Counts.Succeeded)
	assert.Equal(t, amount(n-1), env.bank.GetBalance(keys[n].Pubkey()))
	for i := 1; i < n; i++ {
		assert.Equal(t, uint64(0), env.bank.GetBalance(keys[i].Pubkey()))
	}
	assert.Equal(t, types.LamportsPerSol-amount(0)-fee, env.bank.GetBalance(keys[0].Pubkey()))
}

func TestClosedSlotNoSideEffects(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	to := types.NewUniquePubkey()
	tx := env.transfer(payer, to, 1000)
	env.svc.CloseSlot()

	out := env.process([]*types.Transaction{tx}, nil)
	assert.False(t, out.Committed())
	assert.Equal(t, types.ErrSlotClosed, errors.Cause(out.CommitResult))
	assert.True(t, types.IsSubmissionRejected(out.CommitResult))
	assert.Equal(t, []int{0}, out.RetryableIndexes)
	assert.Nil(t, out.StartingTransactionIndex)
	assert.False(t, out.Transactions[0].Committed)
	//执行结果仍然返回
	assert.NotNil(t, out.Transactions[0].Processed)

	assert.Equal(t, types.LamportsPerSol, env.bank.GetBalance(payer.Pubkey()))
	assert.Equal(t, uint64(0), env.bank.GetBalance(to))
	assert.False(t, env.bank.HasSignature(tx.Signature()))
	assert.Equal(t, uint64(0), env.bank.TransactionCount())
}

func TestStaleBankRejected(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	require.Nil(t, env.recorder.Restart(types.BankIdentity{Slot: 1, BankID: env.bank.BankID() + 1000}))
	out := env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 1)}, nil)
	assert.Equal(t, types.ErrInactiveBank, errors.Cause(out.CommitResult))
	assert.Equal(t, types.LamportsPerSol, env.bank.GetBalance(payer.Pubkey()))
}

func TestFrozenBankRejected(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	//子 bank 已经创建, 排序服务还停在 slot 1
	_, err := executor.NewFromParent(env.bank, 2)
	require.Nil(t, err)
	require.True(t, env.bank.IsFrozen())

	out := env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 1)}, nil)
	assert.Equal(t, types.ErrInactiveBank, errors.Cause(out.CommitResult))
	assert.False(t, types.IsFatal(out.CommitResult))
	assert.Nil(t, out.Transactions)
	assert.Nil(t, out.StartingTransactionIndex)
	assert.Equal(t, types.LamportsPerSol, env.bank.GetBalance(payer.Pubkey()))
	assert.Equal(t, 0, len(env.recordedMixins(t)))
}

func TestChannelClosedIsFatal(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	env.svc.Close()
	out := env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 1)}, nil)
	assert.Equal(t, types.ErrChannelClosed, errors.Cause(out.CommitResult))
	assert.True(t, types.IsFatal(out.CommitResult))
	assert.Equal(t, types.LamportsPerSol, env.bank.GetBalance(payer.Pubkey()))
}

func TestBatchPreconditions(t *testing.T) {
	env := newTestEnv(t, 5)
	payer := env.funded(t, types.LamportsPerSol)
	tx := env.transfer(payer, types.NewUniquePubkey(), 1)

	out := env.consumer.ProcessAndRecordBlockTransactions(env.bank, []*types.Transaction{tx}, []types.MaxAge{1, 2}, 5)
	assert.Equal(t, types.ErrLengthMismatch, errors.Cause(out.CommitResult))
	assert.Nil(t, out.Transactions)

	out = env.consumer.ProcessAndRecordBlockTransactions(env.bank, []*types.Transaction{tx}, []types.MaxAge{types.MaxAgeUnbounded}, 6)
	assert.Equal(t, types.ErrSlotMismatch, errors.Cause(out.CommitResult))
	assert.Nil(t, out.Transactions)
	assert.Equal(t, types.LamportsPerSol, env.bank.GetBalance(payer.Pubkey()))
	_, entries, _ := env.svc.Entries(5)
	assert.Equal(t, 0, len(entries))

	//空区块不提交排序日志
	out = env.process(nil, nil)
	assert.True(t, out.Committed())
	assert.Nil(t, out.StartingTransactionIndex)
}

func TestNotProcessed(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	poor := env.funded(t, 1)
	tx := env.transfer(payer, types.NewUniquePubkey(), 1)
	ghost := env.transfer(types.NewKeypair(), types.NewUniquePubkey(), 1)
	cheap := env.transfer(poor, types.NewUniquePubkey(), 1)

	out := env.process([]*types.Transaction{tx, tx, ghost, cheap}, nil)
	require.Nil(t, out.CommitResult)
	assert.True(t, out.Transactions[0].Committed)
	assert.Equal(t, types.ErrAlreadyProcessed, out.Transactions[1].Err)
	assert.Equal(t, types.ErrAccountNotFound, out.Transactions[2].Err)
	assert.Equal(t, types.ErrInsufficientFundsForFee, out.Transactions[3].Err)
	assert.Equal(t, uint64(1), out.ErrorCounters.AlreadyProcessed)
	assert.Equal(t, uint64(1), out.ErrorCounters.AccountNotFound)
	assert.Equal(t, uint64(1), out.ErrorCounters.InsufficientFundsForFee)
	assert.Equal(t, []types.Hash{tx.MessageHash()}, env.recordedMixins(t))

	//已经提交的交易再次提交
	out = env.process([]*types.Transaction{tx}, nil)
	assert.Equal(t, types.ErrAlreadyProcessed, out.Transactions[0].Err)
	assert.Nil(t, out.StartingTransactionIndex)
}

func TestFailedInstructionStillCharged(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, 10000)
	tx := env.transfer(payer, types.NewUniquePubkey(), 10000)
	out := env.process([]*types.Transaction{tx}, nil)
	require.Nil(t, out.CommitResult)
	p := out.Transactions[0].Processed
	require.NotNil(t, p)
	assert.Equal(t, types.ErrInsufficientFunds, p.Status)
	assert.Equal(t, uint64(1), out.ErrorCounters.InstructionError)
	assert.Equal(t, types.ErrInsufficientFunds, out.CommitDetails[0].Status)
	assert.Equal(t, uint64(10000-fee), env.bank.GetBalance(payer.Pubkey()))
}

func TestAccountOverrides(t *testing.T) {
	overrides := account.NewOverrides()
	env := newTestEnv(t, 1, WithAccountOverrides(overrides))

	//账本中不存在, 覆盖层中有余额
	payer := types.NewKeypair()
	overrides.Set(payer.Pubkey(), types.NewAccount(types.LamportsPerSol, 0, types.SystemProgramID))
	to := types.NewUniquePubkey()
	out := env.process([]*types.Transaction{env.transfer(payer, to, 500)}, nil)
	require.Nil(t, out.CommitResult)
	require.NotNil(t, out.Transactions[0].Processed)
	assert.Equal(t, uint64(500), env.bank.GetBalance(to))

	//覆盖层中的空账户表示删除
	deleted := env.funded(t, types.LamportsPerSol)
	overrides.Set(deleted.Pubkey(), &types.Account{})
	out = env.process([]*types.Transaction{env.transfer(deleted, to, 1)}, nil)
	assert.Equal(t, types.ErrAccountNotFound, out.Transactions[0].Err)

	//删除覆盖之后读取账本
	overrides.Set(deleted.Pubkey(), nil)
	out = env.process([]*types.Transaction{env.transfer(deleted, to, 2)}, nil)
	require.Nil(t, out.CommitResult)
	assert.Nil(t, out.Transactions[0].Err)
	assert.Equal(t, uint64(502), env.bank.GetBalance(to))
}

func TestVoteForwarded(t *testing.T) {
	env := newTestEnv(t, 1)
	payer := env.funded(t, types.LamportsPerSol)
	voteAcc := types.NewKeypair()
	setup := types.NewTransaction([]types.Instruction{
		system.CreateAccount(payer.Pubkey(), voteAcc.Pubkey(), 100000, 0, types.VoteProgramID),
		vote.InitializeAccount(voteAcc.Pubkey(), payer.Pubkey()),
	}, env.bank.LastBlockhash(), payer, voteAcc)
	v := &types.Vote{Slots: []uint64{1}, Hash: env.bank.LastBlockhash()}
	voteTx := types.NewTransaction([]types.Instruction{vote.NewVoteInstruction(voteAcc.Pubkey(), payer.Pubkey(), v)}, env.bank.LastBlockhash(), payer)

	out := env.process([]*types.Transaction{setup, voteTx}, nil)
	require.Nil(t, out.CommitResult)
	require.Nil(t, out.Transactions[0].Processed.Status)
	require.Nil(t, out.Transactions[1].Processed.Status)
	assert.Equal(t, 1, out.VotesForwarded)
	parsed, ok := env.votes.TryRecv()
	require.True(t, ok)
	assert.Equal(t, voteAcc.Pubkey(), parsed.VoteAccount)
	assert.Equal(t, voteTx.Signature(), parsed.Signature)
}

func TestPrioritizationFees(t *testing.T) {
	env := newTestEnv(t, 1)
	a := env.funded(t, types.LamportsPerSol)
	b := env.funded(t, types.LamportsPerSol)
	hot := types.NewUniquePubkey()
	mk := func(payer *types.Keypair, price uint64) *types.Transaction {
		return types.NewTransaction([]types.Instruction{
			computebudget.SetComputeUnitPrice(price),
			system.Transfer(payer.Pubkey(), hot, 1),
		}, env.bank.LastBlockhash(), payer)
	}
	out := env.process([]*types.Transaction{mk(a, 300), mk(b, 100)}, nil)
	require.Nil(t, out.CommitResult)
	assert.Equal(t, uint64(100), out.MinPrioritizationFee)
	assert.Equal(t, uint64(300), out.MaxPrioritizationFee)

	env.fees.FinalizePriorityFee(env.bank.Slot(), env.bank.BankID())
	env.fees.Flush()
	fees := env.fees.GetPrioritizationFees([]types.Pubkey{hot})
	assert.Equal(t, uint64(100), fees[env.bank.Slot()])
	fees = env.fees.GetPrioritizationFees([]types.Pubkey{a.Pubkey()})
	assert.Equal(t, uint64(300), fees[env.bank.Slot()])
}

func TestLogMessagesLimit(t *testing.T) {
	env := newTestEnv(t, 1, WithLogMessagesBytesLimit(60))
	payer := env.funded(t, types.LamportsPerSol)
	out := env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 1)}, nil)
	require.Nil(t, out.CommitResult)
	logs := out.Transactions[0].Processed.LogMessages
	require.Equal(t, 2, len(logs))
	assert.Equal(t, "Log truncated", logs[1])
}

func TestConsumerMetrics(t *testing.T) {
	m := NewMetrics()
	env := newTestEnv(t, 1, WithMetrics(m), WithConfig(&types.Consumer{Workers: 2}))
	assert.Equal(t, 2, env.consumer.workers)
	payer := env.funded(t, types.LamportsPerSol)
	env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 1)}, nil)
	env.svc.CloseSlot()
	env.process([]*types.Transaction{env.transfer(payer, types.NewUniquePubkey(), 2)}, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Blocks.WithLabelValues("committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Blocks.WithLabelValues("rejected")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Transactions.WithLabelValues("executed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transactions.WithLabelValues("committed")))
	assert.Equal(t, 3, len(m.Metrics()))
}
