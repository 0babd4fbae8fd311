// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRegistration()
	RecordMovieCreated()
	RecordMovieUpdated()
	RecordMovieDeleted()
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	loginSuccess    prometheus.Counter
	loginFail       prometheus.Counter
	registrations   prometheus.Counter
	moviesCreated   prometheus.Counter
	moviesUpdated   prometheus.Counter
	moviesDeleted   prometheus.Counter
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cinelog_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		moviesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_movies_created_total",
			Help: "登録された映画の合計数",
		}),
		moviesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_movies_updated_total",
			Help: "更新された映画の合計数",
		}),
		moviesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_movies_deleted_total",
			Help: "削除された映画の合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.loginSuccess,
		c.loginFail,
		c.registrations,
		c.moviesCreated,
		c.moviesUpdated,
		c.moviesDeleted,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordMovieCreated は映画の登録を記録する。
func (c *Collector) RecordMovieCreated() {
	c.moviesCreated.Inc()
}

// RecordMovieUpdated は映画の更新を記録する。
func (c *Collector) RecordMovieUpdated() {
	c.moviesUpdated.Inc()
}

// RecordMovieDeleted は映画の削除を記録する。
func (c *Collector) RecordMovieDeleted() {
	c.moviesDeleted.Inc()
}

// RecordSessionsCleaned はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
