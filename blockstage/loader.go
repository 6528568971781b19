// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"github.com/33cn/blockstage/account"
	"github.com/33cn/blockstage/types"
)

// 区块内的账户视图: 本区块已经执行的交易写入 -> 覆盖层 -> 账本
// stage 只在两个执行层级之间调用, 执行期间只读
type stagedLoader struct {
	staged    map[types.Pubkey]*types.Account
	overrides *account.Overrides
	ledger    Ledger
}

func newStagedLoader(ledger Ledger, overrides *account.Overrides) *stagedLoader {
	return &stagedLoader{
		staged:    make(map[types.Pubkey]*types.Account),
		overrides: overrides,
		ledger:    ledger,
	}
}

func (l *stagedLoader) LoadAccount(key types.Pubkey) (*types.Account, error) {
	if acc, ok := l.staged[key]; ok {
		if acc.IsEmpty() {
			return nil, nil
		}
		return acc.Clone(), nil
	}
	canonical, err := l.ledger.LoadAccount(key)
	if err != nil {
		return nil, err
	}
	if l.overrides == nil {
		return canonical, nil
	}
	acc, ok := l.overrides.Get(key)
	if !ok || !account.Overridable(key, canonical) {
		return canonical, nil
	}
	if acc.IsEmpty() {
		return nil, nil
	}
	return acc, nil
}

func (l *stagedLoader) stage(deltas []types.AccountDelta) {
	for i := range deltas {
		l.staged[deltas[i].Pubkey] = deltas[i].Post
	}
}
