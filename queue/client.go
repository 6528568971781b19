// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/33cn/blockstage/types"
)

//消息队列的主要作用是解耦合，让各个模块相对的独立运行。
//每个模块都会有一个client 对象
//主要的操作大致如下：
// client := queue.Client()
// client.Sub("topicname")
// for msg := range client.Recv() {
//     process(msg)
// }
// process 函数会调用 处理具体的消息逻辑

var gid int64

// Client 消息队列的接口，每个模块都需要一个发送接收client
type Client interface {
	Send(msg Message, waitReply bool) (err error) //一直等待直到消息进入队列
	SendTimeout(msg Message, waitReply bool, timeout time.Duration) (err error)
	Wait(msg Message) (Message, error)                               //等待消息处理完成, 没有超时
	WaitTimeout(msg Message, timeout time.Duration) (Message, error) //等待消息处理完成
	Recv() chan Message
	Sub(topic string) //订阅消息
	Close()
	CloseQueue() (*types.Reply, error)
	NewMessage(topic string, ty int64, data interface{}) (msg Message)
}

// Module be used for module interface
type Module interface {
	SetQueueClient(client Client)
	Close()
}

type client struct {
	q         *queue
	recv      chan Message
	done      chan struct{}
	wg        *sync.WaitGroup
	topic     atomic.Value
	isClosed  int32
	isClosing int32
}

func newClient(q *queue) Client {
	client := &client{}
	client.q = q
	client.recv = make(chan Message, 5)
	client.done = make(chan struct{})
	client.wg = &sync.WaitGroup{}
	client.topic.Store("")
	return client
}

//1. 系统保证send出去的消息就是成功了，除非系统崩溃
//2. 系统保证每个消息都有对应的 response 消息
func (client *client) Send(msg Message, waitReply bool) (err error) {
	return client.SendTimeout(msg, waitReply, -1)
}

// SendTimeout 超时返回 ErrTimeout, 订阅者已经关闭返回 ErrChannelClosed
func (client *client) SendTimeout(msg Message, waitReply bool, timeout time.Duration) (err error) {
	if client.isClose() || client.isInClose() {
		return types.ErrIsClosed
	}
	if !waitReply {
		msg.chReply = nil
		return client.q.sendLow(msg, timeout)
	}
	return client.q.sendHigh(msg, timeout)
}

//系统设计出两种优先级别的消息发送
//1. 不需要回复的消息 低优先级
//2. 需要回复的消息 高优先级别

func (client *client) NewMessage(topic string, ty int64, data interface{}) (msg Message) {
	id := atomic.AddInt64(&gid, 1)
	return NewMessage(id, topic, ty, data)
}

func (client *client) WaitTimeout(msg Message, timeout time.Duration) (Message, error) {
	if msg.chReply == nil {
		return Message{}, types.ErrInvalidParam
	}
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case msg = <-msg.chReply:
		return msg, msg.Err()
	case <-client.done:
		return Message{}, types.ErrIsClosed
	case <-timer:
		return Message{}, types.ErrTimeout
	}
}

// Wait 订阅者关闭时所有未处理的消息都会收到回复, 所以这里不设置超时
// 用 Send(msg, false) 发送的消息不会有回复, 对它调用 Wait 会一直阻塞
func (client *client) Wait(msg Message) (Message, error) {
	return client.WaitTimeout(msg, -1)
}

func (client *client) Recv() chan Message {
	return client.recv
}

func (client *client) getTopic() string {
	return client.topic.Load().(string)
}

func (client *client) isClose() bool {
	return atomic.LoadInt32(&client.isClosed) == 1
}

func (client *client) isInClose() bool {
	return atomic.LoadInt32(&client.isClosing) == 1
}

// Close 关闭订阅, Recv 中还没有被处理的消息回复 ErrChannelClosed
func (client *client) Close() {
	if !atomic.CompareAndSwapInt32(&client.isClosing, 0, 1) {
		return
	}
	topic := client.getTopic()
	if topic != "" {
		client.q.closeTopic(topic)
	}
	close(client.done)
	client.wg.Wait()
	atomic.StoreInt32(&client.isClosed, 1)
	drainReply(client.recv)
	close(client.recv)
}

// CloseQueue 通知 Start 退出
func (client *client) CloseQueue() (*types.Reply, error) {
	if client.q.isClosed() {
		return &types.Reply{IsOk: true}, nil
	}
	qlog.Debug("queue", "msg", "closing blockstage")
	select {
	case client.q.interrupt <- struct{}{}:
	default:
	}
	return &types.Reply{IsOk: true}, nil
}

func (client *client) forward(data Message) bool {
	select {
	case client.recv <- data:
		return true
	case <-client.done:
		data.ReplyErr("queue", types.ErrChannelClosed)
		return false
	}
}

func (client *client) Sub(topic string) {
	//正在关闭或者已经关闭
	if client.isInClose() || client.isClose() {
		return
	}
	client.wg.Add(1)
	client.topic.Store(topic)
	sub := client.q.chanSub(topic)
	go func() {
		defer client.wg.Done()
		for {
			//高优先级的消息先处理
			select {
			case data := <-sub.high:
				if !client.forward(data) {
					return
				}
				continue
			default:
			}
			select {
			case data := <-sub.high:
				if !client.forward(data) {
					return
				}
			case data := <-sub.low:
				if !client.forward(data) {
					return
				}
			case <-sub.done:
				qlog.Info("unsub", "topic", topic)
				return
			case <-client.done:
				qlog.Info("unsub", "topic", topic)
				return
			}
		}
	}()
}
