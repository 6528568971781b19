// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor

//注册内置程序
import (
	_ "github.com/33cn/blockstage/executor/drivers/computebudget" //register computebudget
	_ "github.com/33cn/blockstage/executor/drivers/system"        //register system
	_ "github.com/33cn/blockstage/executor/drivers/vote"          //register vote
)
