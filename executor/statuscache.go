// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor

import (
	"github.com/33cn/blockstage/types"
	lru "github.com/hashicorp/golang-lru"
)

// StatusCache 已经提交的交易签名, 用于拒绝重复交易
type StatusCache struct {
	cache *lru.Cache
}

// NewStatusCache new
func NewStatusCache(size int) (*StatusCache, error) {
	if size <= 0 {
		size = 1000000
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &StatusCache{cache: cache}, nil
}

// Add 记录签名以及提交的 slot
func (s *StatusCache) Add(sig types.Signature, slot types.Slot) {
	s.cache.Add(sig, slot)
}

// Get 签名是否已经提交
func (s *StatusCache) Get(sig types.Signature) (types.Slot, bool) {
	v, ok := s.cache.Get(sig)
	if !ok {
		return 0, false
	}
	return v.(types.Slot), true
}

// Contains 不更新 lru 顺序
func (s *StatusCache) Contains(sig types.Signature) bool {
	return s.cache.Contains(sig)
}

// Clear 清空
func (s *StatusCache) Clear() {
	s.cache.Purge()
}

// Len 数量
func (s *StatusCache) Len() int {
	return s.cache.Len()
}
