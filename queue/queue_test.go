// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/33cn/blockstage/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	DisableLog()
}

const testTopic = "echo"

func startEcho(q Queue) Client {
	client := q.Client()
	client.Sub(testTopic)
	go func() {
		for msg := range client.Recv() {
			if msg.Ty == types.EventTick {
				msg.Reply(client.NewMessage(testTopic, types.EventReply, &types.Reply{IsOk: true, Msg: []byte("word")}))
			}
		}
	}()
	return client
}

func TestMultiTopic(t *testing.T) {
	q := New("channel")
	assert.Equal(t, "channel", q.Name())
	srv := startEcho(q)
	defer srv.Close()

	client := q.Client()
	msg := client.NewMessage(testTopic, types.EventTick, "hello")
	require.Nil(t, client.Send(msg, true))
	reply, err := client.Wait(msg)
	require.Nil(t, err)
	assert.Equal(t, "word", string(reply.GetData().(*types.Reply).Msg))

	//不需要回复的消息, 订阅者不会回复
	msg = client.NewMessage(testTopic, types.EventTick, nil)
	require.Nil(t, client.Send(msg, false))
	_, err = client.WaitTimeout(msg, 100*time.Millisecond)
	assert.Equal(t, types.ErrTimeout, err)

	//没有回复通道的消息
	_, err = client.Wait(Message{Topic: testTopic})
	assert.Equal(t, types.ErrInvalidParam, err)
}

func TestCloseTopicReplyPending(t *testing.T) {
	q := New("channel")
	//订阅了但是不处理消息
	srv := q.Client()
	srv.Sub(testTopic)

	client := q.Client()
	var msgs []Message
	for i := 0; i < 10; i++ {
		msg := client.NewMessage(testTopic, types.EventTick, i)
		require.Nil(t, client.Send(msg, true))
		msgs = append(msgs, msg)
	}
	srv.Close()
	for _, msg := range msgs {
		_, err := client.Wait(msg)
		assert.Equal(t, types.ErrChannelClosed, err)
	}

	//关闭之后再发送
	msg := client.NewMessage(testTopic, types.EventTick, nil)
	assert.Equal(t, types.ErrChannelClosed, client.SendTimeout(msg, true, time.Second))
}

func TestSendTimeout(t *testing.T) {
	q := New("channel")
	client := q.Client()
	//没有订阅者, 高优先级 channel 写满之后超时
	for i := 0; i < defaultChanBuffer; i++ {
		require.Nil(t, client.SendTimeout(client.NewMessage(testTopic, types.EventTick, i), true, time.Second))
	}
	err := client.SendTimeout(client.NewMessage(testTopic, types.EventTick, nil), true, 10*time.Millisecond)
	assert.Equal(t, types.ErrTimeout, err)
	err = client.SendTimeout(client.NewMessage(testTopic, types.EventTick, nil), true, 0)
	assert.Equal(t, ErrChannelFull, err)

	//阻塞的发送者在关闭时返回
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := client.Send(client.NewMessage(testTopic, types.EventTick, nil), true)
		assert.Equal(t, types.ErrChannelClosed, err)
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
}

func TestWaitClientClosed(t *testing.T) {
	q := New("channel")
	client := q.Client()
	msg := client.NewMessage(testTopic, types.EventTick, nil)
	require.Nil(t, client.Send(msg, true))
	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()
	_, err := client.Wait(msg)
	assert.Equal(t, types.ErrIsClosed, err)
	assert.Equal(t, types.ErrIsClosed, client.Send(msg, true))
}

func TestQueueStart(t *testing.T) {
	q := New("channel")
	client := q.Client()
	done := make(chan struct{})
	go func() {
		q.Start()
		close(done)
	}()
	reply, err := client.CloseQueue()
	require.Nil(t, err)
	assert.True(t, reply.IsOk)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue not stopped")
	}
	_, err = client.CloseQueue()
	assert.Nil(t, err)
}

func TestFuncMap(t *testing.T) {
	var fm FuncMap
	fm.Init()
	require.Nil(t, fm.Register(types.EventTick, func(msg *Message) (int64, interface{}, error) {
		return types.EventReply, msg.Data, nil
	}))
	assert.Equal(t, ErrMessageIDExisted, fm.Register(types.EventTick, nil))

	msg := NewMessage(1, testTopic, types.EventTick, "x")
	ok, ty, data, err := fm.Process(&msg)
	assert.True(t, ok)
	assert.Equal(t, int64(types.EventReply), ty)
	assert.Equal(t, "x", data)
	assert.Nil(t, err)

	fm.UnRegister(types.EventTick)
	ok, _, _, _ = fm.Process(&msg)
	assert.False(t, ok)
}
