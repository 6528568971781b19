// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

// queue 消息类型
const (
	EventRecord = iota + 1
	EventRecordReply
	EventRestart
	EventTick
	EventReply
	EventCloseSlot
)

// queue topic
const (
	PohTopic = "poh"
)

var eventName = map[int]string{
	EventRecord:      "EventRecord",
	EventRecordReply: "EventRecordReply",
	EventRestart:     "EventRestart",
	EventTick:        "EventTick",
	EventReply:       "EventReply",
	EventCloseSlot:   "EventCloseSlot",
}

// GetEventName 消息名称, 日志使用
func GetEventName(event int) string {
	name, ok := eventName[event]
	if ok {
		return name
	}
	return "unknow-event"
}

// Reply 通用回复
type Reply struct {
	IsOk bool
	Msg  []byte
}
