// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 对账操作类型
const (
	OpInserted = "inserted"
	OpUpdated  = "updated"
	OpFailed   = "failed"
)

// 对账结果
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
	ResultAborted = "aborted"
	ResultSkipped = "skipped"
)

// Metrics 服务指标集合
// nil 指针上的方法均为空操作，方便测试与命令行工具不注册指标
type Metrics struct {
	gatherer prometheus.Gatherer

	reconcileRuns     *prometheus.CounterVec
	reconcileItems    *prometheus.CounterVec
	reconcileFailures *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New 创建并注册指标
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battery_reconcile_runs_total",
				Help: "Total reconcile passes by result.",
			},
			[]string{"result"},
		),
		reconcileItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battery_reconcile_items_total",
				Help: "Records inserted, updated or failed by reconcile passes.",
			},
			[]string{"op"},
		),
		reconcileFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battery_reconcile_failures_total",
				Help: "Reconcile failures by stage.",
			},
			[]string{"stage"},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "battery_reconcile_duration_seconds",
				Help:    "Reconcile pass duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.reconcileRuns,
		m.reconcileItems,
		m.reconcileFailures,
		m.reconcileDuration,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// ObserveReconcile 记录一次对账
func (m *Metrics) ObserveReconcile(result string, d time.Duration, inserted, updated, failed int) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(d.Seconds())
	m.reconcileItems.WithLabelValues(OpInserted).Add(float64(inserted))
	m.reconcileItems.WithLabelValues(OpUpdated).Add(float64(updated))
	m.reconcileItems.WithLabelValues(OpFailed).Add(float64(failed))
}

// IncReconcileSkipped 记录因锁被占用而跳过的对账
func (m *Metrics) IncReconcileSkipped() {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(ResultSkipped).Inc()
}

// IncFailure 按阶段记录失败
func (m *Metrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.reconcileFailures.WithLabelValues(stage).Inc()
}

// GinMiddleware HTTP 请求计数与耗时
// path 使用路由模板，避免 ID 造成标签爆炸
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
