// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package util 生成测试以及压测使用的账户和交易
package util

import (
	"io/ioutil"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"

	"github.com/33cn/blockstage/common/db"
	"github.com/33cn/blockstage/executor/drivers/system"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var ulog = log.New("module", "util")

// Funder 可以直接充值的账本
type Funder interface {
	Deposit(key types.Pubkey, lamports uint64) error
}

// GenKeypairs 生成 n 个账户
func GenKeypairs(n int) []*types.Keypair {
	keys := make([]*types.Keypair, n)
	for i := range keys {
		keys[i] = types.NewKeypair()
	}
	return keys
}

// FundKeypairs 给每个账户充值
func FundKeypairs(bank Funder, keys []*types.Keypair, lamports uint64) error {
	for _, kp := range keys {
		if err := bank.Deposit(kp.Pubkey(), lamports); err != nil {
			return errors.Wrapf(err, "fund %s", kp.Pubkey())
		}
	}
	return nil
}

// CreateTransferTx 转账交易
func CreateTransferTx(from *types.Keypair, to types.Pubkey, lamports uint64, blockhash types.Hash) *types.Transaction {
	return types.NewTransaction([]types.Instruction{system.Transfer(from.Pubkey(), to, lamports)}, blockhash, from)
}

// GenRandomTransfers 每个付款账户向一个新账户转账, 交易之间没有冲突
func GenRandomTransfers(r *rand.Rand, payers []*types.Keypair, maxLamports uint64, blockhash types.Hash) []*types.Transaction {
	txs := make([]*types.Transaction, len(payers))
	for i, kp := range payers {
		lamports := uint64(1)
		if maxLamports > 1 {
			lamports += uint64(r.Int63n(int64(maxLamports - 1)))
		}
		txs[i] = CreateTransferTx(kp, types.NewUniquePubkey(), lamports, blockhash)
	}
	return txs
}

// GenSequentialTransfers 链式转账: keys[i] -> keys[i+1], 每一笔依赖上一笔的结果
// keys[0] 需要至少 amount + 签名费, 每一跳少转一份签名费
func GenSequentialTransfers(keys []*types.Keypair, amount, fee uint64, blockhash types.Hash) ([]*types.Transaction, error) {
	if len(keys) < 2 {
		return nil, types.ErrInvalidParam
	}
	n := len(keys) - 1
	if amount <= uint64(n)*fee {
		return nil, errors.Wrapf(types.ErrInvalidParam, "amount %d too small for %d hops", amount, n)
	}
	txs := make([]*types.Transaction, n)
	for i := 0; i < n; i++ {
		txs[i] = CreateTransferTx(keys[i], keys[i+1].Pubkey(), amount-uint64(i)*fee, blockhash)
	}
	return txs, nil
}

// MaxAges 所有交易使用同一个有效期
func MaxAges(n int, age types.MaxAge) []types.MaxAge {
	ages := make([]types.MaxAge, n)
	for i := range ages {
		ages[i] = age
	}
	return ages
}

// ResetDatadir 把配置中的相对路径放到 datadir 下, 支持 ~/ 与 $TEMP/ 前缀
func ResetDatadir(cfg *types.Config, datadir string) string {
	if len(datadir) >= 2 && datadir[:2] == "~/" {
		usr, err := user.Current()
		if err != nil {
			panic(err)
		}
		datadir = filepath.Join(usr.HomeDir, datadir[2:])
	}
	if len(datadir) >= 6 && datadir[:6] == "$TEMP/" {
		dir, err := ioutil.TempDir("", "blockstage-")
		if err != nil {
			panic(err)
		}
		datadir = filepath.Join(dir, datadir[6:])
	}
	ulog.Info("current user data dir is ", "dir", datadir)
	if cfg.Log.LogFile != "" {
		cfg.Log.LogFile = filepath.Join(datadir, cfg.Log.LogFile)
	}
	cfg.Ledger.DbPath = filepath.Join(datadir, cfg.Ledger.DbPath)
	return datadir
}

// CreateTestDB 在临时目录中创建一个数据库
func CreateTestDB(backend string) (string, db.DB) {
	dir, err := ioutil.TempDir("", backend)
	if err != nil {
		panic(err)
	}
	d, err := db.NewDB("test", backend, dir, 16)
	if err != nil {
		panic(err)
	}
	return dir, d
}

// CloseTestDB 关闭并删除测试数据库
func CloseTestDB(dir string, d db.DB) {
	d.Close()
	if err := os.RemoveAll(dir); err != nil {
		ulog.Info("RemoveAll ", "dir", dir, "err", err)
	}
}

// CheckPathExists 检查文件夹是否存在
func CheckPathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
