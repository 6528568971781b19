// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/33cn/blockstage/common/log"
	"github.com/33cn/blockstage/metrics"
	"github.com/33cn/blockstage/types"
	"github.com/33cn/blockstage/util"
	"github.com/33cn/blockstage/util/testnode"
	"github.com/pkg/errors"
	"github.com/qianlnk/pgbar"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// 压测负载
const (
	WorkloadRandom     = "random"
	WorkloadSequential = "sequential"
)

// BenchCmd 通过完整流水线执行区块负载
func BenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run block workloads through check, execute, record and commit",
		Run:   bench,
	}
	addBenchFlags(cmd)
	return cmd
}

func addBenchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("workload", "w", WorkloadRandom, `"random" (independent transfers) or "sequential" (each transfer depends on the previous one)`)
	cmd.Flags().IntP("txs", "n", 1000, "transactions per block")
	cmd.Flags().IntP("blocks", "b", 10, "number of blocks, one slot each")
	cmd.Flags().Int32("workers", 0, "execution workers, 0 uses the config value")
	cmd.Flags().Int64("seed", 1, "random seed")
	cmd.Flags().Bool("quiet", false, "no progress bar")
}

// BenchOptions 压测参数
type BenchOptions struct {
	Workload string
	Txs      int
	Blocks   int
	Seed     int64
}

// BenchResult 压测结果
type BenchResult struct {
	Blocks    int
	Attempted uint64
	Committed uint64
	Rejected  uint64
	Retryable uint64
	Fees      uint64
	Elapsed   time.Duration
}

// TPS 每秒提交的交易数
func (r *BenchResult) TPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Committed) / r.Elapsed.Seconds()
}

func bench(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	var opts BenchOptions
	opts.Workload, _ = cmd.Flags().GetString("workload")
	opts.Txs, _ = cmd.Flags().GetInt("txs")
	opts.Blocks, _ = cmd.Flags().GetInt("blocks")
	opts.Seed, _ = cmd.Flags().GetInt64("seed")
	workers, _ := cmd.Flags().GetInt32("workers")
	if workers > 0 {
		cfg.Consumer.Workers = workers
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	var progress func()
	if !quiet {
		pgbar.Println("blockstage bench " + opts.Workload)
		bar := pgbar.NewBar(0, "blocks", opts.Blocks)
		progress = func() { bar.Add(1) }
	}
	res, err := RunBench(cfg, &opts, progress)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printBenchResult(res)
}

// RunBench 在新的节点上执行 opts.Blocks 个区块, 资金准备不计入耗时
func RunBench(cfg *types.Config, opts *BenchOptions, progress func()) (*BenchResult, error) {
	if opts.Txs <= 0 || opts.Blocks <= 0 {
		return nil, errors.Wrap(types.ErrInvalidParam, "txs and blocks must be positive")
	}
	if opts.Workload != WorkloadRandom && opts.Workload != WorkloadSequential {
		return nil, errors.Wrapf(types.ErrInvalidParam, "unknown workload %s", opts.Workload)
	}
	mock, err := testnode.New(cfg)
	if err != nil {
		return nil, err
	}
	defer mock.Close()
	//压测时只输出错误日志
	log.SetLogLevel("error")

	srv, err := metrics.StartMetrics(&cfg.Metrics, mock.Metrics())
	if err != nil {
		return nil, err
	}
	if srv != nil {
		defer srv.Close()
	}

	r := rand.New(rand.NewSource(opts.Seed))
	var payers []*types.Keypair
	if opts.Workload == WorkloadRandom {
		payers = util.GenKeypairs(opts.Txs)
		if err := util.FundKeypairs(mock.Bank(), payers, types.LamportsPerSol); err != nil {
			return nil, err
		}
	}
	res := &BenchResult{}
	for b := 0; b < opts.Blocks; b++ {
		if b > 0 {
			if err := mock.NewSlot(types.Slot(b + 1)); err != nil {
				return nil, err
			}
		}
		bank := mock.Bank()
		var txs []*types.Transaction
		if opts.Workload == WorkloadRandom {
			txs = util.GenRandomTransfers(r, payers, 1000, bank.LastBlockhash())
		} else {
			keys := util.GenKeypairs(opts.Txs + 1)
			fee := bank.LamportsPerSignature()
			if err := bank.Deposit(keys[0].Pubkey(), types.LamportsPerSol+fee); err != nil {
				return nil, err
			}
			txs, err = util.GenSequentialTransfers(keys, types.LamportsPerSol, fee, bank.LastBlockhash())
			if err != nil {
				return nil, err
			}
		}

		beg := time.Now()
		out := mock.ProcessBlock(txs, util.MaxAges(len(txs), types.MaxAgeUnbounded))
		res.Elapsed += time.Since(beg)
		if types.IsFatal(out.CommitResult) {
			return nil, out.CommitResult
		}
		res.Blocks++
		res.Attempted += out.Counts.Attempted
		res.Committed += out.Counts.Committed
		res.Rejected += out.Counts.Rejected
		res.Retryable += uint64(len(out.RetryableIndexes))
		res.Fees += bank.CollectedFees()
		if progress != nil {
			progress()
		}
	}
	return res, nil
}

// LamportsToSol 以 SOL 为单位显示
func LamportsToSol(lamports uint64) string {
	return decimal.New(int64(lamports), -9).StringFixed(9)
}

func printBenchResult(res *BenchResult) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "blocks\t%d\n", res.Blocks)
	fmt.Fprintf(w, "attempted\t%d\n", res.Attempted)
	fmt.Fprintf(w, "committed\t%d\n", res.Committed)
	fmt.Fprintf(w, "rejected\t%d\n", res.Rejected)
	fmt.Fprintf(w, "retryable\t%d\n", res.Retryable)
	fmt.Fprintf(w, "fees\t%s SOL\n", LamportsToSol(res.Fees))
	fmt.Fprintf(w, "elapsed\t%v\n", res.Elapsed)
	fmt.Fprintf(w, "tps\t%.0f\n", res.TPS())
	w.Flush()

	timers := metrics.Timers()
	sort.Slice(timers, func(i, j int) bool { return timers[i].Name < timers[j].Name })
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "phase\tcount\tmean(ms)\tp50(ms)\tp99(ms)\tmax(ms)")
	for _, t := range timers {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n", t.Name, t.Count, t.Mean, t.P50, t.P99, t.Max)
	}
	w.Flush()
}
