// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli blockstage 命令行
package cli

import (
	"fmt"
	"os"

	"github.com/33cn/blockstage/cli/commands"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blockstage",
	Short: "validator block consumption pipeline tools",
}

func init() {
	rootCmd.PersistentFlags().StringP("conf", "c", "", "toml config file, empty for defaults")
	rootCmd.AddCommand(
		commands.BenchCmd(),
		commands.ConfigCmd(),
	)
}

// Run 执行命令行
func Run() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
