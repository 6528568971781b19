// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package queue

import "errors"

// ErrMessageIDExisted 消息类型已经注册
var ErrMessageIDExisted = errors.New("ErrMessageIDExisted")

// 返回值为回复的消息类型以及数据
type msgcallback func(*Message) (int64, interface{}, error)

// FuncMap 模块按消息类型注册处理函数
type FuncMap struct {
	funcmap map[int64]msgcallback
}

// Init 初始化
func (qfm *FuncMap) Init() {
	qfm.funcmap = make(map[int64]msgcallback)
}

// Register 注册消息处理函数
func (qfm *FuncMap) Register(msgid int64, fn func(*Message) (int64, interface{}, error)) error {
	if _, ok := qfm.funcmap[msgid]; ok {
		return ErrMessageIDExisted
	}
	qfm.funcmap[msgid] = fn
	return nil
}

// UnRegister 取消注册
func (qfm *FuncMap) UnRegister(msgid int64) {
	delete(qfm.funcmap, msgid)
}

// Process 处理消息, 没有注册的消息类型返回 false
func (qfm *FuncMap) Process(msg *Message) (bool, int64, interface{}, error) {
	fn, ok := qfm.funcmap[msg.Ty]
	if !ok {
		return false, 0, nil, nil
	}
	retty, reply, err := fn(msg)
	return true, retty, reply, err
}
