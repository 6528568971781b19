// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstage

import (
	"github.com/33cn/blockstage/metrics"
	"github.com/33cn/blockstage/types"
	"github.com/prometheus/client_golang/prometheus"
	go_metrics "github.com/rcrowley/go-metrics"
)

// Metrics 区块执行指标
type Metrics struct {
	Blocks       *prometheus.CounterVec
	Transactions *prometheus.CounterVec
	PhaseSeconds *prometheus.HistogramVec

	checkAge go_metrics.Timer
	execute  go_metrics.Timer
	record   go_metrics.Timer
	commit   go_metrics.Timer
}

// NewMetrics new
func NewMetrics() *Metrics {
	return &Metrics{
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "consumer",
			Name:      "blocks_total",
			Help:      "Blocks processed by result.",
		}, []string{"result"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "consumer",
			Name:      "transactions_total",
			Help:      "Transactions processed by state.",
		}, []string{"state"}),
		PhaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "consumer",
			Name:      "phase_seconds",
			Help:      "Time spent in each pipeline phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"phase"}),
		checkAge: metrics.Timer("blockstage.check_age"),
		execute:  metrics.Timer("blockstage.execute"),
		record:   metrics.Timer("blockstage.record"),
		commit:   metrics.Timer("blockstage.commit"),
	}
}

// Metrics 实现 metrics.Collector
func (m *Metrics) Metrics() []prometheus.Collector {
	return metrics.PrometheusCollectorsFromFields(m)
}

func blockResult(out *BlockOutcome) string {
	switch {
	case out.Committed():
		return "committed"
	case types.IsFatal(out.CommitResult):
		return "fatal"
	case types.IsSubmissionRejected(out.CommitResult):
		return "rejected"
	}
	return "invalid"
}

func (m *Metrics) observe(out *BlockOutcome) {
	m.Blocks.WithLabelValues(blockResult(out)).Inc()
	m.Transactions.WithLabelValues("executed").Add(float64(out.Counts.Executed))
	m.Transactions.WithLabelValues("rejected").Add(float64(out.Counts.Rejected))
	m.Transactions.WithLabelValues("committed").Add(float64(out.Counts.Committed))
	m.Transactions.WithLabelValues("expired").Add(float64(out.ErrorCounters.Expired))

	t := &out.Timings
	m.PhaseSeconds.WithLabelValues("check_age").Observe(t.CheckAge.Seconds())
	m.PhaseSeconds.WithLabelValues("execute").Observe(t.Execute.Seconds())
	m.PhaseSeconds.WithLabelValues("record").Observe(t.Record.Seconds())
	m.PhaseSeconds.WithLabelValues("commit").Observe(t.Commit.Seconds())
	m.checkAge.Update(t.CheckAge)
	m.execute.Update(t.Execute)
	m.record.Update(t.Record)
	m.commit.Update(t.Commit)
}
