// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import (
	"bytes"
	"io/ioutil"
	"time"

	tml "github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config 全局配置
type Config struct {
	Title    string   `toml:"title"`
	Log      Log      `toml:"log"`
	Ledger   Ledger   `toml:"ledger"`
	Poh      Poh      `toml:"poh"`
	Consumer Consumer `toml:"consumer"`
	FeeCache FeeCache `toml:"feecache"`
	Metrics  Metrics  `toml:"metrics"`
}

// Log 日志配置
type Log struct {
	Loglevel        string `toml:"loglevel"`
	LogConsoleLevel string `toml:"logConsoleLevel"`
	LogFile         string `toml:"logFile"`
	MaxFileSize     uint32 `toml:"maxFileSize"`
	MaxBackups      uint32 `toml:"maxBackups"`
	MaxAge          uint32 `toml:"maxAge"`
	LocalTime       bool   `toml:"localTime"`
	Compress        bool   `toml:"compress"`
	CallerFile      bool   `toml:"callerFile"`
	CallerFunction  bool   `toml:"callerFunction"`
}

// Ledger 账本配置
type Ledger struct {
	Driver               string `toml:"driver"`
	DbPath               string `toml:"dbPath"`
	DbCache              int32  `toml:"dbCache"`
	LamportsPerSignature uint64 `toml:"lamportsPerSignature"`
	StatusCacheSize      int32  `toml:"statusCacheSize"`
	MaxRecentBlockhashes int32  `toml:"maxRecentBlockhashes"`
}

// Poh 排序服务配置
type Poh struct {
	HashesPerTick uint64 `toml:"hashesPerTick"`
	TicksPerSlot  uint64 `toml:"ticksPerSlot"`
	// 自动 tick 间隔, 0 表示由调用方驱动
	TickIntervalMs int64 `toml:"tickIntervalMs"`
	// 内存中保留多少个 slot 的 entry
	EntrySlots int32 `toml:"entrySlots"`
	// 提交请求入队的超时时间, 等待结果没有超时
	SendTimeoutMs int64 `toml:"sendTimeoutMs"`
}

// TickInterval 自动 tick 间隔
func (p *Poh) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// SendTimeout 提交请求入队超时
func (p *Poh) SendTimeout() time.Duration {
	return time.Duration(p.SendTimeoutMs) * time.Millisecond
}

// Consumer 区块执行配置
type Consumer struct {
	Workers               int32 `toml:"workers"`
	LogMessagesBytesLimit int32 `toml:"logMessagesBytesLimit"`
}

// FeeCache 优先费缓存配置
type FeeCache struct {
	Capacity    int32 `toml:"capacity"`
	ChannelSize int32 `toml:"channelSize"`
}

// Metrics 监控配置
type Metrics struct {
	EnableMetrics bool   `toml:"enableMetrics"`
	ListenAddr    string `toml:"listenAddr"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	cfg, err := InitCfgString("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// InitCfg 从文件读取配置, 没有配置的字段使用默认值
func InitCfg(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return InitCfgString(string(data))
}

// InitCfgString 先加载默认配置, 再用用户配置覆盖
func InitCfgString(cfgstring string) (*Config, error) {
	var cfg Config
	if _, err := tml.Decode(cfgdefault, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode default config")
	}
	if cfgstring == "" {
		return &cfg, nil
	}
	if _, err := tml.Decode(cfgstring, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

// Encode 配置输出为 toml
func (cfg *Config) Encode() (string, error) {
	buf := new(bytes.Buffer)
	if err := tml.NewEncoder(buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
