package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce        sync.Once
	auditEnqueuedTotal  prometheus.Counter
	auditFlushTotal     *prometheus.CounterVec
	auditFlushDuration  prometheus.Histogram
	auditPersistedTotal prometheus.Counter
	auditFallbackTotal  *prometheus.CounterVec
	auditDroppedTotal   prometheus.Counter
	auditReapedTotal    prometheus.Counter
	auditQueueDepth     prometheus.Gauge
	defaultFlushBuckets = prometheus.DefBuckets
)

const (
	namespaceMetrics = "rescueapp"
)

// MustRegister 初始化审计管道的 Prometheus 指标并注册运行时采样器，
// 需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		auditEnqueuedTotal = registerCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "events_enqueued_total",
				Help:      "进入异步队列的审计事件数量。",
			}),
		)
		auditFlushTotal = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "audit",
					Name:      "flushes_total",
					Help:      "批量刷盘次数，按结果统计。",
				},
				[]string{"status"},
			),
		)
		auditFlushDuration = registerHistogram(
			prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "flush_duration_seconds",
				Help:      "单次批量刷盘耗时。",
				Buckets:   defaultFlushBuckets,
			}),
		)
		auditPersistedTotal = registerCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "events_persisted_total",
				Help:      "压缩后成功落库的审计记录数量。",
			}),
		)
		auditFallbackTotal = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "audit",
					Name:      "fallback_writes_total",
					Help:      "绕过批处理的同步兜底写入次数，按触发层级统计。",
				},
				[]string{"tier"},
			),
		)
		auditDroppedTotal = registerCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "events_dropped_total",
				Help:      "所有兜底路径均失败后永久丢失的审计事件数量。",
			}),
		)
		auditReapedTotal = registerCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "retention_deleted_total",
				Help:      "保留期清理删除的审计记录数量。",
			}),
		)
		auditQueueDepth = registerGauge(
			prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespaceMetrics,
				Subsystem: "audit",
				Name:      "queue_depth",
				Help:      "最近一次观测到的待刷盘队列深度。",
			}),
		)

		registerRuntimeCollectors()
	})
}

// AddAuditEnqueued 记录成功入队的事件数量。
func AddAuditEnqueued(n int) {
	if auditEnqueuedTotal == nil || n <= 0 {
		return
	}
	auditEnqueuedTotal.Add(float64(n))
}

// ObserveAuditFlush 记录一次刷盘的结果、耗时与落库行数。
func ObserveAuditFlush(status string, duration time.Duration, persisted int) {
	if auditFlushTotal == nil || auditFlushDuration == nil {
		return
	}
	auditFlushTotal.WithLabelValues(normalizeLabel(status, "unknown")).Inc()
	auditFlushDuration.Observe(duration.Seconds())
	if auditPersistedTotal != nil && persisted > 0 {
		auditPersistedTotal.Add(float64(persisted))
	}
}

// AddAuditFallbackWrite 记录一次同步兜底写入，tier 区分触发层级。
func AddAuditFallbackWrite(tier string) {
	if auditFallbackTotal == nil {
		return
	}
	auditFallbackTotal.WithLabelValues(normalizeLabel(tier, "unknown")).Inc()
}

// AddAuditDropped 记录一条最终丢失的审计事件。
func AddAuditDropped() {
	if auditDroppedTotal == nil {
		return
	}
	auditDroppedTotal.Inc()
}

// AddAuditReaped 记录保留期清理删除的行数。
func AddAuditReaped(n int64) {
	if auditReapedTotal == nil || n <= 0 {
		return
	}
	auditReapedTotal.Add(float64(n))
}

// SetAuditQueueDepth 更新队列深度观测值。
func SetAuditQueueDepth(depth int) {
	if auditQueueDepth == nil || depth < 0 {
		return
	}
	auditQueueDepth.Set(float64(depth))
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounter(c prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogram(h prometheus.Histogram) prometheus.Histogram {
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func registerGauge(g prometheus.Gauge) prometheus.Gauge {
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
		panic(err)
	}
	return g
}

func registerRuntimeCollectors() {
	if err := prometheus.Register(collectors.NewGoCollector()); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
	if err := prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
}

func isAlreadyRegistered(err error) bool {
	_, ok := err.(prometheus.AlreadyRegisteredError)
	return ok
}
