package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gemini 调用延迟（毫秒）
	GeminiCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemini_call_latency_ms",
			Help:    "Gemini generateContent call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
		[]string{"method", "path", "status"},
	)

	// 回复生成计数
	ReplyGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_reply_generated_total",
			Help: "Total number of email replies generated",
		},
		[]string{"status"}, // status: success, failed
	)

	// 生成失败计数（按失败类型）
	ReplyFailureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_reply_failures_total",
			Help: "Total number of failed email reply generations by failure kind",
		},
		[]string{"kind"},
	)

	// 熔断器状态：0 closed, 1 open, 2 half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

// RecordGeminiCallLatency 记录 Gemini 调用延迟
func RecordGeminiCallLatency(status string, duration time.Duration) {
	GeminiCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementReplyGenerated 增加回复生成计数
func IncrementReplyGenerated(status string) {
	ReplyGeneratedCount.WithLabelValues(status).Inc()
}

// IncrementReplyFailure 增加失败计数
func IncrementReplyFailure(kind string) {
	ReplyFailureCount.WithLabelValues(kind).Inc()
}

// SetCircuitBreakerState 更新熔断器状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
