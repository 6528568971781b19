// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

var cfgdefault = `
title="local"

[log]
# 日志级别，支持debug(dbug)/info/warn/error(eror)/crit
loglevel = "debug"
logConsoleLevel = "info"
# 日志文件名，可带目录，为空时只输出到控制台
logFile = ""
# 单个日志文件的最大值（单位：兆）
maxFileSize = 300
# 最多保存的历史日志文件个数
maxBackups = 100
# 最多保存的历史日志消息（单位：天）
maxAge = 28
localTime = true
compress = true
callerFile = false
callerFunction = false

[ledger]
# 账户存储: memdb/goleveldb/gobadgerdb
driver = "memdb"
dbPath = "datadir/accounts"
dbCache = 64
lamportsPerSignature = 5000
statusCacheSize = 1000000
maxRecentBlockhashes = 300

[poh]
hashesPerTick = 64
ticksPerSlot = 64
tickIntervalMs = 0
entrySlots = 32
sendTimeoutMs = 1000

[consumer]
# 0 表示使用 CPU 个数
workers = 0
# 0 表示不限制日志长度
logMessagesBytesLimit = 0

[feecache]
capacity = 150
channelSize = 10000

[metrics]
enableMetrics = false
listenAddr = "localhost:9100"
`
