// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"github.com/33cn/blockstage/types"
)

// schedule 按账户读写冲突把交易分成若干层, 同一层的交易互不冲突可以并行执行
// 写-写, 读-写冲突的交易按原始顺序放到后面的层, 读-读不冲突
func schedule(txs []*types.Transaction, indexes []int) [][]int {
	lastWrite := make(map[types.Pubkey]int)
	lastRead := make(map[types.Pubkey]int)
	var levels [][]int
	for _, i := range indexes {
		msg := &txs[i].Message
		level := 0
		for k, key := range msg.AccountKeys {
			if w, ok := lastWrite[key]; ok && w+1 > level {
				level = w + 1
			}
			if !msg.IsWritable(k) {
				continue
			}
			if r, ok := lastRead[key]; ok && r+1 > level {
				level = r + 1
			}
		}
		for k, key := range msg.AccountKeys {
			if msg.IsWritable(k) {
				lastWrite[key] = level
			} else if r, ok := lastRead[key]; !ok || level > r {
				lastRead[key] = level
			}
		}
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], i)
	}
	return levels
}
