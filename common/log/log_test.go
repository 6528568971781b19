// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/33cn/blockstage/types"
	log15 "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, log15.LvlDebug, getLevel("debug"))
	assert.Equal(t, log15.LvlInfo, getLevel("info"))
	assert.Equal(t, log15.LvlError, getLevel("nosuchlevel"))
}

func TestSetFileLog(t *testing.T) {
	dir, err := os.MkdirTemp("", "blockstagelog")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "test.log")
	SetFileLog(&types.Log{LogFile: file, Loglevel: "info", LogConsoleLevel: "crit", MaxFileSize: 1})
	New("module", "logtest").Info("hello", "k", 1)
	DisableLog()

	data, err := os.ReadFile(file)
	require.Nil(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "module=logtest")

	// 默认级别为 error
	l := &types.Log{}
	fillDefaultValue(l)
	assert.Equal(t, "eror", l.Loglevel)
}
