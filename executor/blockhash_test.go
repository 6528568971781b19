// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor

import (
	"testing"

	"github.com/33cn/blockstage/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockhashQueue(t *testing.T) {
	q := NewBlockhashQueue(2)
	q.Register(types.Hash{1}, 1)
	q.Register(types.Hash{2}, 2)
	q.Register(types.Hash{2}, 5)
	slot, ok := q.Slot(types.Hash{2})
	assert.True(t, ok)
	assert.Equal(t, types.Slot(2), slot)

	clone := q.Clone()
	q.Register(types.Hash{3}, 3)
	_, ok = q.Slot(types.Hash{1})
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, types.Hash{3}, q.Last())

	//clone 不受影响
	_, ok = clone.Slot(types.Hash{1})
	assert.True(t, ok)
	assert.Equal(t, types.Hash{2}, clone.Last())
}

func TestStatusCache(t *testing.T) {
	s, err := NewStatusCache(2)
	require.Nil(t, err)
	s.Add(types.Signature{1}, 1)
	s.Add(types.Signature{2}, 2)
	s.Add(types.Signature{3}, 3)
	assert.False(t, s.Contains(types.Signature{1}))
	slot, ok := s.Get(types.Signature{3})
	assert.True(t, ok)
	assert.Equal(t, types.Slot(3), slot)
	s.Clear()
	assert.Equal(t, 0, s.Len())
}
