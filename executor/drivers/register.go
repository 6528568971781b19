// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drivers 内置程序的注册以及执行环境
package drivers

import (
	"sync"

	clog "github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var elog = log.New("module", "execs")

// SetLogLevel set log level
func SetLogLevel(level string) {
	clog.SetLogLevel(level)
}

// DisableLog disable log
func DisableLog() {
	elog.SetHandler(log.DiscardHandler())
}

// Driver 内置程序
type Driver interface {
	GetName() string
	ProgramID() types.Pubkey
	// ComputeUnits 每条指令的基础消耗
	ComputeUnits() uint32
	Exec(ctx *InvokeContext, ix *types.CompiledInstruction) error
}

// DriverCreate 创建 driver
type DriverCreate func() Driver

var (
	mu               sync.RWMutex
	registedDrivers  = make(map[types.Pubkey]Driver)
	driverNameToAddr = make(map[string]types.Pubkey)
)

// Register 注册程序, 重复注册 panic
func Register(create DriverCreate) {
	if create == nil {
		panic("Execute: Register driver is nil")
	}
	d := create()
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registedDrivers[d.ProgramID()]; dup {
		panic("Execute: Register called twice for driver " + d.GetName())
	}
	registedDrivers[d.ProgramID()] = d
	driverNameToAddr[d.GetName()] = d.ProgramID()
	elog.Debug("Register", "driver", d.GetName(), "program", d.ProgramID())
}

// LoadDriver 按程序地址查找
func LoadDriver(programID types.Pubkey) (Driver, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registedDrivers[programID]
	if !ok {
		return nil, errors.Wrapf(types.ErrUnknownProgram, "program %s", programID)
	}
	return d, nil
}

// ProgramAddress 按名字查找程序地址
func ProgramAddress(name string) (types.Pubkey, bool) {
	mu.RLock()
	defer mu.RUnlock()
	addr, ok := driverNameToAddr[name]
	return addr, ok
}

// IsProgram 地址是否为内置程序
func IsProgram(key types.Pubkey) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registedDrivers[key]
	return ok
}
