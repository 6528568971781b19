// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import (
	"errors"

	perrors "github.com/pkg/errors"
)

// 单笔交易错误, 记录在结果中, 不影响整个区块
var (
	ErrTxExpired                = errors.New("ErrTxExpired")
	ErrAlreadyProcessed         = errors.New("ErrAlreadyProcessed")
	ErrAccountNotFound          = errors.New("ErrAccountNotFound")
	ErrInsufficientFundsForFee  = errors.New("ErrInsufficientFundsForFee")
	ErrInsufficientFunds        = errors.New("ErrInsufficientFunds")
	ErrComputeBudgetExceeded    = errors.New("ErrComputeBudgetExceeded")
	ErrInvalidComputeBudget     = errors.New("ErrInvalidComputeBudget")
	ErrReadonlyModified         = errors.New("ErrReadonlyModified")
	ErrMissingSignature         = errors.New("ErrMissingSignature")
	ErrInvalidInstructionData   = errors.New("ErrInvalidInstructionData")
	ErrInvalidAccountIndex      = errors.New("ErrInvalidAccountIndex")
	ErrInvalidAccountOwner      = errors.New("ErrInvalidAccountOwner")
	ErrAccountAlreadyInUse      = errors.New("ErrAccountAlreadyInUse")
	ErrUnknownProgram           = errors.New("ErrUnknownProgram")
	ErrNonceBlockhashNotExpired = errors.New("ErrNonceBlockhashNotExpired")
	ErrVoteTooOld               = errors.New("ErrVoteTooOld")
)

// 区块级别错误
var (
	ErrSlotMismatch   = errors.New("ErrSlotMismatch")
	ErrLengthMismatch = errors.New("ErrLengthMismatch")
	ErrSlotClosed     = errors.New("ErrSlotClosed")
	ErrInactiveBank   = errors.New("ErrInactiveBank")
	ErrRecorderBusy   = errors.New("ErrRecorderBusy")
	ErrChannelClosed  = errors.New("ErrChannelClosed")
	ErrLedgerApply    = errors.New("ErrLedgerApply")
)

// 通用错误
var (
	ErrInvalidLength = errors.New("ErrInvalidLength")
	ErrNotFound      = errors.New("ErrNotFound")
	ErrTimeout       = errors.New("ErrTimeout")
	ErrIsClosed      = errors.New("ErrIsClosed")
	ErrInvalidParam  = errors.New("ErrInvalidParam")
	ErrDupDriver     = errors.New("ErrDupDriver")
)

// IsFatal 不可重试的错误, 需要进程级别处理
func IsFatal(err error) bool {
	cause := perrors.Cause(err)
	return cause == ErrChannelClosed || cause == ErrLedgerApply
}

// IsSubmissionRejected 排序服务拒绝提交, 调用方可以在新的 slot 重试或者丢弃区块
func IsSubmissionRejected(err error) bool {
	cause := perrors.Cause(err)
	return cause == ErrSlotClosed || cause == ErrInactiveBank || cause == ErrRecorderBusy
}
