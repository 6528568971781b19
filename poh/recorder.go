// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poh

import (
	"time"

	"github.com/33cn/blockstage/queue"
	"github.com/33cn/blockstage/types"
	"github.com/pkg/errors"
)

// RecordSummary 一次提交的结果, Err 为 nil 时 StartingTransactionIndex 有效
type RecordSummary struct {
	Err                      error
	StartingTransactionIndex uint64
}

// TransactionRecorder 提交 mixin 的一端, 通过 queue 把请求发给排序服务并等待结果
type TransactionRecorder struct {
	client      queue.Client
	sendTimeout time.Duration
}

// NewTransactionRecorder 入队超时使用 cfg.SendTimeout, 小于 0 表示一直等待
func NewTransactionRecorder(client queue.Client, cfg *types.Poh) *TransactionRecorder {
	timeout := cfg.SendTimeout()
	if cfg.SendTimeoutMs < 0 {
		timeout = -1
	}
	return &TransactionRecorder{client: client, sendTimeout: timeout}
}

// Submit 提交到 slot 的工作 bank
func (r *TransactionRecorder) Submit(slot types.Slot, mixins []types.Hash) error {
	return r.RecordTransactions(types.BankIdentity{Slot: slot}, mixins).Err
}

// RecordTransactions 阻塞直到排序服务接受或者拒绝, 没有 mixin 时直接返回
func (r *TransactionRecorder) RecordTransactions(identity types.BankIdentity, mixins []types.Hash) RecordSummary {
	if len(mixins) == 0 {
		return RecordSummary{}
	}
	msg := r.client.NewMessage(types.PohTopic, types.EventRecord, &types.Record{Identity: identity, Mixins: mixins})
	resp, err := r.request(msg)
	if err != nil {
		return RecordSummary{Err: errors.Wrapf(err, "record slot %d", identity.Slot)}
	}
	reply, ok := resp.GetData().(*types.RecordReply)
	if !ok {
		return RecordSummary{Err: errors.Wrapf(types.ErrInvalidParam, "record slot %d reply %v", identity.Slot, resp.Data)}
	}
	return RecordSummary{StartingTransactionIndex: reply.StartingTransactionIndex}
}

// Restart 通知排序服务新的工作 bank
func (r *TransactionRecorder) Restart(identity types.BankIdentity) error {
	msg := r.client.NewMessage(types.PohTopic, types.EventRestart, &identity)
	_, err := r.request(msg)
	return err
}

func (r *TransactionRecorder) request(msg queue.Message) (queue.Message, error) {
	err := r.client.SendTimeout(msg, true, r.sendTimeout)
	switch err {
	case nil:
	case types.ErrTimeout, queue.ErrChannelFull:
		plog.Error("request", "msg", msg, "err", err)
		return queue.Message{}, types.ErrRecorderBusy
	case types.ErrChannelClosed, types.ErrIsClosed:
		return queue.Message{}, types.ErrChannelClosed
	default:
		return queue.Message{}, err
	}
	resp, err := r.client.Wait(msg)
	if err == types.ErrIsClosed {
		return resp, types.ErrChannelClosed
	}
	return resp, err
}
