// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、可用性プローブ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordBackendAvailable(available bool)
	RecordOperation(operation string, mode model.Mode, duration time.Duration)
	RecordFallback(operation string)
	RecordSwallowedFailure(operation string)
	RecordSyntheticEnrollment()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendAvailable     prometheus.Gauge
	operationLatency     *prometheus.HistogramVec
	fallbacks            *prometheus.CounterVec
	swallowedFailures    *prometheus.CounterVec
	syntheticEnrollments prometheus.Counter
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnhub_backend_available",
			Help: "リモートバックエンドの到達可否（1: 到達可能, 0: 到達不可または未設定）",
		}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_operation_duration_seconds",
			Help:    "サービス操作の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "mode"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_fallback_total",
			Help: "フォールバックで処理した操作の合計数",
		}, []string{"operation"}),
		swallowedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_swallowed_failures_total",
			Help: "握りつぶした副次的な失敗の合計数",
		}, []string{"operation"}),
		syntheticEnrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_synthetic_enrollments_total",
			Help: "バックエンドに保存されなかった受講登録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.backendAvailable,
		c.operationLatency,
		c.fallbacks,
		c.swallowedFailures,
		c.syntheticEnrollments,
		c.httpStatus,
	)

	return c
}

// RecordBackendAvailable はバックエンドの到達可否を記録する。
func (c *Collector) RecordBackendAvailable(available bool) {
	if available {
		c.backendAvailable.Set(1)
		return
	}
	c.backendAvailable.Set(0)
}

// RecordOperation は操作の処理時間をモード別に記録する。
func (c *Collector) RecordOperation(operation string, mode model.Mode, duration time.Duration) {
	c.operationLatency.WithLabelValues(operation, string(mode)).Observe(duration.Seconds())
}

// RecordFallback はフォールバックで処理した操作を記録する。
func (c *Collector) RecordFallback(operation string) {
	c.fallbacks.WithLabelValues(operation).Inc()
}

// RecordSwallowedFailure は握りつぶした失敗を記録する。
func (c *Collector) RecordSwallowedFailure(operation string) {
	c.swallowedFailures.WithLabelValues(operation).Inc()
}

// RecordSyntheticEnrollment は合成した受講登録を記録する。
func (c *Collector) RecordSyntheticEnrollment() {
	c.syntheticEnrollments.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordBackendAvailable(bool) {}
func (Nop) RecordOperation(string, model.Mode, time.Duration) {}
func (Nop) RecordFallback(string) {}
func (Nop) RecordSwallowedFailure(string) {}
func (Nop) RecordSyntheticEnrollment() {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
