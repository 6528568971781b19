// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poh

import (
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/queue"
	"github.com/33cn/blockstage/types"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/inconshreveable/log15"
)

var plog = log.New("module", "poh")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	plog.SetHandler(log.DiscardHandler())
}

type slotEntries struct {
	start   types.Hash
	entries []*Entry
}

// Service 排序服务, 作为 queue 模块运行, 消息按照到达顺序依次处理
type Service struct {
	cfg     *types.Poh
	client  queue.Client
	funcMap queue.FuncMap

	mu         sync.Mutex
	poh        *Poh
	working    *types.BankIdentity
	slotClosed bool
	slotTicks  uint64
	txIndex    uint64
	current    *slotEntries
	entries    *lru.Cache

	done     chan struct{}
	wg       sync.WaitGroup
	isclosed int32
}

// New 创建排序服务, 需要 SetQueueClient 之后才开始处理消息
func New(cfg *types.Poh, seed types.Hash) *Service {
	size := int(cfg.EntrySlots)
	if size <= 0 {
		size = 32
	}
	entries, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	s := &Service{
		cfg:     cfg,
		poh:     NewPoh(seed, cfg.HashesPerTick),
		entries: entries,
		done:    make(chan struct{}),
	}
	s.funcMap.Init()
	s.funcMap.Register(types.EventRecord, s.onRecord)
	s.funcMap.Register(types.EventRestart, s.onRestart)
	s.funcMap.Register(types.EventTick, s.onTick)
	s.funcMap.Register(types.EventCloseSlot, s.onCloseSlot)
	return s
}

// SetQueueClient 订阅 poh topic
func (s *Service) SetQueueClient(client queue.Client) {
	s.client = client
	s.client.Sub(types.PohTopic)
	s.wg.Add(1)
	go s.procRecvMsg()
	if interval := s.cfg.TickInterval(); interval > 0 {
		s.wg.Add(1)
		go s.tickLoop(interval)
	}
}

// Close 停止服务, 队列中还没有处理的消息回复 ErrChannelClosed
func (s *Service) Close() {
	if !atomic.CompareAndSwapInt32(&s.isclosed, 0, 1) {
		return
	}
	close(s.done)
	if s.client != nil {
		s.client.Close()
	}
	s.wg.Wait()
	plog.Info("poh module closed")
}

func (s *Service) procRecvMsg() {
	defer s.wg.Done()
	for msg := range s.client.Recv() {
		plog.Debug("poh recv", "msg", types.GetEventName(int(msg.Ty)), "id", msg.ID)
		exist, ty, reply, err := s.funcMap.Process(&msg)
		if !exist {
			msg.ReplyErr("poh", types.ErrInvalidParam)
			continue
		}
		if err != nil {
			msg.Reply(s.client.NewMessage("", ty, err))
			continue
		}
		msg.Reply(s.client.NewMessage("", ty, reply))
	}
}

func (s *Service) tickLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Service) onRecord(msg *queue.Message) (int64, interface{}, error) {
	rec, ok := msg.GetData().(*types.Record)
	if !ok {
		return types.EventRecordReply, nil, types.ErrInvalidParam
	}
	reply, err := s.Record(rec)
	return types.EventRecordReply, reply, err
}

func (s *Service) onRestart(msg *queue.Message) (int64, interface{}, error) {
	id, ok := msg.GetData().(*types.BankIdentity)
	if !ok {
		return types.EventReply, nil, types.ErrInvalidParam
	}
	s.Restart(*id)
	return types.EventReply, &types.Reply{IsOk: true}, nil
}

func (s *Service) onTick(msg *queue.Message) (int64, interface{}, error) {
	s.Tick()
	return types.EventReply, &types.Reply{IsOk: true}, nil
}

func (s *Service) onCloseSlot(msg *queue.Message) (int64, interface{}, error) {
	s.CloseSlot()
	return types.EventReply, &types.Reply{IsOk: true}, nil
}

// Record 混入一组 mixin, 返回这组交易在 slot 中的起始序号
// BankID 为 0 时只检查 slot
func (s *Service) Record(rec *types.Record) (*types.RecordReply, error) {
	if len(rec.Mixins) == 0 {
		return nil, types.ErrInvalidParam
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.working
	if w == nil {
		return nil, types.ErrInactiveBank
	}
	if rec.Identity.Slot < w.Slot {
		return nil, types.ErrSlotClosed
	}
	if rec.Identity.Slot > w.Slot || (rec.Identity.BankID != 0 && rec.Identity.BankID != w.BankID) {
		return nil, types.ErrInactiveBank
	}
	if s.slotClosed {
		return nil, types.ErrSlotClosed
	}
	entry := s.poh.Record(rec.Mixins)
	s.current.entries = append(s.current.entries, entry)
	start := s.txIndex
	s.txIndex += uint64(len(rec.Mixins))
	plog.Debug("Record", "slot", w.Slot, "mixins", len(rec.Mixins), "start", start, "hash", entry.Hash)
	return &types.RecordReply{StartingTransactionIndex: start}, nil
}

// Restart 切换到新的工作 bank, 之前的 slot 不再接受提交
func (s *Service) Restart(id types.BankIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = &id
	s.slotClosed = false
	s.slotTicks = 0
	s.txIndex = 0
	s.current = &slotEntries{start: s.poh.Current()}
	s.entries.Add(id.Slot, s.current)
	plog.Info("Restart", "slot", id.Slot, "bank", id.BankID, "start", s.current.start)
}

// Tick 推进时钟, 达到 TicksPerSlot 之后关闭当前 slot
// 没有工作 bank 时只推进哈希
func (s *Service) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.poh.Tick()
	if s.working == nil || s.slotClosed {
		return
	}
	s.current.entries = append(s.current.entries, e)
	s.slotTicks++
	if s.cfg.TicksPerSlot > 0 && s.slotTicks >= s.cfg.TicksPerSlot {
		s.slotClosed = true
		plog.Debug("slot closed", "slot", s.working.Slot, "ticks", s.slotTicks)
	}
}

// CloseSlot 关闭当前 slot
func (s *Service) CloseSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working != nil && !s.slotClosed {
		s.slotClosed = true
		plog.Debug("CloseSlot", "slot", s.working.Slot)
	}
}

// WorkingBank 当前工作 bank, slot 关闭时返回 false
func (s *Service) WorkingBank() (types.BankIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working == nil || s.slotClosed {
		return types.BankIdentity{}, false
	}
	return *s.working, true
}

// TickHeight tick 总数
func (s *Service) TickHeight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poh.TickHeight()
}

// Entries slot 的起始哈希以及 entry 列表
func (s *Service) Entries(slot types.Slot) (types.Hash, []*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries.Get(slot)
	if !ok {
		return types.Hash{}, nil, false
	}
	se := v.(*slotEntries)
	return se.start, append([]*Entry(nil), se.entries...), true
}
