// Copyright Fuzamei Corp. 2018 All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics prometheus 指标以及 go-metrics 计时器
package metrics

import (
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/33cn/blockstage/types"
	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	go_metrics "github.com/rcrowley/go-metrics"
)

var mlog = log.New("module", "metrics")

// Namespace prometheus 指标前缀
var Namespace = "blockstage"

// Collector 暴露一组 prometheus 指标
type Collector interface {
	Metrics() []prometheus.Collector
}

// PrometheusCollectorsFromFields 结构体中所有 prometheus.Collector 类型的导出字段
func PrometheusCollectorsFromFields(i interface{}) (cs []prometheus.Collector) {
	v := reflect.Indirect(reflect.ValueOf(i))
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).CanInterface() {
			continue
		}
		if u, ok := v.Field(i).Interface().(prometheus.Collector); ok {
			cs = append(cs, u)
		}
	}
	return cs
}

// Register 把 collector 的指标注册到 registry
func Register(reg prometheus.Registerer, collectors ...Collector) error {
	for _, c := range collectors {
		for _, m := range c.Metrics() {
			if err := reg.Register(m); err != nil {
				return errors.Wrap(err, "register metrics")
			}
		}
	}
	return nil
}

// Server /metrics http 服务
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close 关闭 http 服务
func (s *Server) Close() error {
	return s.srv.Close()
}

// StartMetrics 根据配置启动 /metrics 服务, 没有开启时返回 nil
func StartMetrics(cfg *types.Metrics, collectors ...Collector) (*Server, error) {
	if !cfg.EnableMetrics {
		mlog.Info("Metrics data is not enabled to emit")
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	if err := Register(reg, collectors...); err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", cfg.ListenAddr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	s := &Server{srv: &http.Server{Handler: mux, ReadHeaderTimeout: time.Minute}, listener: l}
	go func() {
		if err := s.srv.Serve(l); err != nil && err != http.ErrServerClosed {
			mlog.Error("StartMetrics", "err", err)
		}
	}()
	mlog.Info("StartMetrics", "addr", s.Addr())
	return s, nil
}

// Timer go-metrics 默认 registry 中的计时器
func Timer(name string) go_metrics.Timer {
	return go_metrics.GetOrRegisterTimer(name, go_metrics.DefaultRegistry)
}

// TimerSnapshot 计时器统计, 单位毫秒
type TimerSnapshot struct {
	Name  string
	Count int64
	Mean  float64
	P50   float64
	P99   float64
	Max   float64
}

// Timers 默认 registry 中所有计时器的统计
func Timers() []TimerSnapshot {
	var out []TimerSnapshot
	go_metrics.DefaultRegistry.Each(func(name string, i interface{}) {
		t, ok := i.(go_metrics.Timer)
		if !ok {
			return
		}
		s := t.Snapshot()
		ps := s.Percentiles([]float64{0.5, 0.99})
		ms := float64(time.Millisecond)
		out = append(out, TimerSnapshot{
			Name:  name,
			Count: s.Count(),
			Mean:  s.Mean() / ms,
			P50:   ps[0] / ms,
			P99:   ps[1] / ms,
			Max:   float64(s.Max()) / ms,
		})
	})
	return out
}
