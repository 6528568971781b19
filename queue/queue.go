// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package queue 模块之间的消息队列
package queue

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
)

//消息队列：
//多对多消息队列
//消息：topic

//1. 队列特点：
//1.1 一个topic 只有一个订阅者（以后会变成多个）目前基本够用，模块都只有一个实例.
//1.2 消息的回复直接通过消息自带的channel 回复

var qlog = log.New("module", "queue")

const (
	defaultChanBuffer    = 64
	defaultLowChanBuffer = 40960
)

//DisableLog disable log
func DisableLog() {
	qlog.SetHandler(log.DiscardHandler())
}

type chanSub struct {
	high chan Message
	low  chan Message
	done chan struct{}
	// 发送者持有读锁, 关闭时持有写锁, 关闭之后不会再有消息进入 channel
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newChanSub() *chanSub {
	return &chanSub{
		high: make(chan Message, defaultChanBuffer),
		low:  make(chan Message, defaultLowChanBuffer),
		done: make(chan struct{}),
	}
}

// Queue only one obj in project
// Queue only generate Client and start、Close operate,
// if you send massage or receive massage by using Client.
type Queue interface {
	Close()
	Start()
	Client() Client
	Name() string
}

type queue struct {
	chanSubs  map[string]*chanSub
	mu        sync.Mutex
	done      chan struct{}
	interrupt chan struct{}
	isClose   int32
	name      string
}

// New new queue struct
func New(name string) Queue {
	q := &queue{
		chanSubs:  make(map[string]*chanSub),
		name:      name,
		done:      make(chan struct{}),
		interrupt: make(chan struct{}, 1),
	}
	return q
}

// Name return the queue name
func (q *queue) Name() string {
	return q.name
}

// Start 阻塞直到 CloseQueue 或者 Close
func (q *queue) Start() {
	select {
	case <-q.done:
	case <-q.interrupt:
		q.Close()
	}
	qlog.Info("queue stopped", "name", q.name)
}

func (q *queue) isClosed() bool {
	return atomic.LoadInt32(&q.isClose) == 1
}

// Close 关闭所有 topic, 还没有处理的消息回复 ErrChannelClosed
func (q *queue) Close() {
	if !atomic.CompareAndSwapInt32(&q.isClose, 0, 1) {
		return
	}
	q.mu.Lock()
	subs := make([]string, 0, len(q.chanSubs))
	for topic := range q.chanSubs {
		subs = append(subs, topic)
	}
	q.mu.Unlock()
	for _, topic := range subs {
		q.closeTopic(topic)
	}
	close(q.done)
	qlog.Info("queue module closed", "name", q.name)
}

func (q *queue) chanSub(topic string) *chanSub {
	q.mu.Lock()
	defer q.mu.Unlock()
	sub, ok := q.chanSubs[topic]
	if !ok {
		sub = newChanSub()
		q.chanSubs[topic] = sub
		if q.isClosed() {
			sub.closeOnce.Do(func() { close(sub.done) })
			sub.closed = true
		}
	}
	return sub
}

func (q *queue) closeTopic(topic string) {
	q.mu.Lock()
	sub, ok := q.chanSubs[topic]
	q.mu.Unlock()
	if !ok {
		return
	}
	sub.closeOnce.Do(func() { close(sub.done) })
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
	drainReply(sub.high)
	drainReply(sub.low)
}

// 把 channel 中剩余的消息都回复 ErrChannelClosed
func drainReply(ch chan Message) {
	for {
		select {
		case msg := <-ch:
			msg.ReplyErr("queue", types.ErrChannelClosed)
		default:
			return
		}
	}
}

// timeout == 0 不等待, timeout < 0 一直等待
func (q *queue) send(sub *chanSub, ch func(*chanSub) chan Message, msg Message, timeout time.Duration) error {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	if sub.closed {
		return types.ErrChannelClosed
	}
	c := ch(sub)
	if timeout == 0 {
		select {
		case c <- msg:
			return nil
		case <-sub.done:
			return types.ErrChannelClosed
		default:
			return ErrChannelFull
		}
	}
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case c <- msg:
		return nil
	case <-sub.done:
		return types.ErrChannelClosed
	case <-timer:
		qlog.Error("send timeout", "msg", msg, "topic", msg.Topic)
		return types.ErrTimeout
	}
}

func (q *queue) sendHigh(msg Message, timeout time.Duration) error {
	if q.isClosed() {
		return types.ErrChannelClosed
	}
	return q.send(q.chanSub(msg.Topic), func(s *chanSub) chan Message { return s.high }, msg, timeout)
}

func (q *queue) sendLow(msg Message, timeout time.Duration) error {
	if q.isClosed() {
		return types.ErrChannelClosed
	}
	return q.send(q.chanSub(msg.Topic), func(s *chanSub) chan Message { return s.low }, msg, timeout)
}

// Client new client
func (q *queue) Client() Client {
	return newClient(q)
}

// ErrChannelFull 不等待发送时 channel 已满
var ErrChannelFull = errors.New("ErrChannelFull")

// Message message struct
type Message struct {
	Topic   string
	Ty      int64
	ID      int64
	Data    interface{}
	chReply chan Message
}

// NewMessage new message
func NewMessage(id int64, topic string, ty int64, data interface{}) (msg Message) {
	msg.ID = id
	msg.Ty = ty
	msg.Data = data
	msg.Topic = topic
	msg.chReply = make(chan Message, 1)
	return msg
}

// GetData get message data
func (msg Message) GetData() interface{} {
	if _, ok := msg.Data.(error); ok {
		return nil
	}
	return msg.Data
}

// Err if err return error msg, or return nil
func (msg Message) Err() error {
	if err, ok := msg.Data.(error); ok {
		return err
	}
	return nil
}

// Reply reply message to reply chan
func (msg Message) Reply(replyMsg Message) {
	if msg.chReply == nil {
		qlog.Debug("reply a empty chreply", "msg", msg)
		return
	}
	select {
	case msg.chReply <- replyMsg:
	default:
		qlog.Error("message replied twice", "msg", msg)
	}
}

// ReplyErr reply error
func (msg Message) ReplyErr(title string, err error) {
	var reply Message
	if err != nil {
		qlog.Debug(title, "reply.err", err)
		reply.Data = err
	} else {
		reply.Data = &types.Reply{IsOk: true}
	}
	reply.ID = msg.ID
	reply.Ty = types.EventReply
	reply.Topic = msg.Topic
	msg.Reply(reply)
}

// String print the message information
func (msg Message) String() string {
	return fmt.Sprintf("{topic:%s, Ty:%s, Id:%d, Err:%v, Ch:%v}", msg.Topic,
		types.GetEventName(int(msg.Ty)), msg.ID, msg.Err(), msg.chReply != nil)
}
