package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// 外部服务调用延迟（毫秒），provider: gmail / genai
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Mail and generative provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"provider", "endpoint", "status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~60s
		},
		[]string{"method", "path", "status"},
	)

	// 分析降级计数（summary / sentiment / tasks）
	AnalysisFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_fallback_count",
			Help: "Total number of analysis results replaced by a fallback value",
		},
		[]string{"kind"},
	)

	// 噪声过滤命中计数
	NoiseExcludedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_excluded_count",
			Help: "Total number of messages excluded by the noise filter",
		},
		[]string{"rule"},
	)

	// 线程拉取计数
	ThreadFetchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thread_fetch_count",
			Help: "Total number of thread fetches",
		},
		[]string{"op", "status"}, // status: success, failed
	)

	// 被新请求取代的请求计数
	SupersededRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superseded_request_count",
			Help: "Total number of requests dropped because a newer request for the same key arrived",
		},
		[]string{"path"},
	)

	// 熔断器状态变化计数
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "to"},
	)
)

// RecordProviderCallLatency 记录外部调用延迟
func RecordProviderCallLatency(provider, endpoint, status string, duration time.Duration) {
	ProviderCallLatency.WithLabelValues(provider, endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementAnalysisFallback 增加降级计数
func IncrementAnalysisFallback(kind string) {
	AnalysisFallbackCount.WithLabelValues(kind).Inc()
}

// IncrementNoiseExcluded 增加噪声过滤计数
func IncrementNoiseExcluded(rule string) {
	NoiseExcludedCount.WithLabelValues(rule).Inc()
}

// IncrementThreadFetch 增加线程拉取计数
func IncrementThreadFetch(op, status string) {
	ThreadFetchCount.WithLabelValues(op, status).Inc()
}

// IncrementSuperseded 增加被取代请求计数
func IncrementSuperseded(path string) {
	SupersededRequestCount.WithLabelValues(path).Inc()
}

// IncrementBreakerTransition 记录熔断器状态变化
func IncrementBreakerTransition(name, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, to).Inc()
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
