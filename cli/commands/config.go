// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package commands blockstage 子命令
package commands

import (
	"fmt"
	"os"

	"github.com/33cn/blockstage/types"
	"github.com/spf13/cobra"
)

// ConfigCmd 输出生效的配置
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective config (defaults merged with --conf)",
		Run:   printConfig,
	}
	return cmd
}

func printConfig(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	s, err := cfg.Encode()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Print(s)
}

func loadConfig(cmd *cobra.Command) (*types.Config, error) {
	path, _ := cmd.Flags().GetString("conf")
	if path == "" {
		return types.DefaultConfig(), nil
	}
	return types.InitCfg(path)
}
