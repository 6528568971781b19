// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/33cn/blockstage/types"
)

//ToHex []byte -> hex
func ToHex(b []byte) string {
	hex := Bytes2Hex(b)
	// Prefer output of "0x0" instead of "0x"
	if len(hex) == 0 {
		return ""
	}
	return "0x" + hex
}

//Bytes2Hex []byte -> hex
func Bytes2Hex(d []byte) string {
	return hex.EncodeToString(d)
}

// CopyBytes Returns an exact copy of the provided bytes
func CopyBytes(b []byte) (copiedBytes []byte) {
	if b == nil {
		return nil
	}
	copiedBytes = make([]byte, len(b))
	copy(copiedBytes, b)

	return
}

//Sha256 加密
func Sha256(b []byte) types.Hash {
	return sha256.Sum256(b)
}

//HashV 多段数据拼接后做一次 sha256
func HashV(vals ...[]byte) types.Hash {
	s := sha256.New()
	for _, v := range vals {
		s.Write(v)
	}
	var out types.Hash
	copy(out[:], s.Sum(nil))
	return out
}

//ExtendAndHash poh 混入: sha256(prev || mixin)
func ExtendAndHash(prev types.Hash, mixin types.Hash) types.Hash {
	return HashV(prev[:], mixin[:])
}

//HashN 连续做 n 次 sha256
func HashN(prev types.Hash, n uint64) types.Hash {
	h := prev
	for i := uint64(0); i < n; i++ {
		h = sha256.Sum256(h[:])
	}
	return h
}
