// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package committer

import (
	"sync"

	"github.com/33cn/blockstage/types"
)

// 没有容量限制的投票队列, 发送永远不会阻塞
type voteChannel struct {
	mu     sync.Mutex
	votes  []*types.ParsedVote
	notify chan struct{}
	closed bool
}

// ReplayVoteSender 投票发送端, 由 Committer 持有
type ReplayVoteSender struct {
	ch *voteChannel
}

// ReplayVoteReceiver 投票接收端, 由共识投票模块持有
type ReplayVoteReceiver struct {
	ch *voteChannel
}

// NewReplayVoteChannel 创建投票队列
func NewReplayVoteChannel() (*ReplayVoteSender, *ReplayVoteReceiver) {
	ch := &voteChannel{notify: make(chan struct{}, 1)}
	return &ReplayVoteSender{ch: ch}, &ReplayVoteReceiver{ch: ch}
}

func (c *voteChannel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
}

// TrySend 队列已经关闭时返回 ErrChannelClosed
func (s *ReplayVoteSender) TrySend(vote *types.ParsedVote) error {
	c := s.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return types.ErrChannelClosed
	}
	c.votes = append(c.votes, vote)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close 关闭队列, 接收端取完剩余的投票之后返回 false
func (s *ReplayVoteSender) Close() {
	s.ch.close()
}

// TryRecv 不等待
func (r *ReplayVoteReceiver) TryRecv() (*types.ParsedVote, bool) {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.votes) == 0 {
		return nil, false
	}
	v := c.votes[0]
	c.votes[0] = nil
	c.votes = c.votes[1:]
	return v, true
}

// Recv 阻塞直到有投票或者队列关闭
func (r *ReplayVoteReceiver) Recv() (*types.ParsedVote, bool) {
	for {
		if v, ok := r.TryRecv(); ok {
			return v, true
		}
		if _, ok := <-r.ch.notify; !ok {
			return r.TryRecv()
		}
	}
}

// Len 队列中的投票个数
func (r *ReplayVoteReceiver) Len() int {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return len(r.ch.votes)
}

// Close 接收端退出, 之后的发送都会失败
func (r *ReplayVoteReceiver) Close() {
	r.ch.close()
}
