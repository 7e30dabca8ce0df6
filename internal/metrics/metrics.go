// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 各カウンタのresultラベルに使用する値。
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultInvalid     = "invalid"
	ResultEmailExists = "email_exists"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration(result string)
	RecordVerificationEmail(result string)
	RecordEmailVerification(result string)
	RecordLogin(result string)
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations      *prometheus.CounterVec
	verificationEmails *prometheus.CounterVec
	emailVerifications *prometheus.CounterVec
	logins             *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpLatency        prometheus.Histogram
	sessionsCleaned    prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_registrations_total",
			Help: "結果別の登録フォーム送信数",
		}, []string{"result"}),
		verificationEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_verification_emails_total",
			Help: "結果別の確認メール送信数",
		}, []string{"result"}),
		emailVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_email_verifications_total",
			Help: "結果別のメールアドレス確認リンクのアクセス数",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_http_requests_total",
			Help: "メソッドとステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seminar_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seminar_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.verificationEmails,
		c.emailVerifications,
		c.logins,
		c.httpRequests,
		c.httpLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordRegistration は登録フォーム送信の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordVerificationEmail は確認メール送信の結果を記録する。
func (c *Collector) RecordVerificationEmail(result string) {
	c.verificationEmails.WithLabelValues(result).Inc()
}

// RecordEmailVerification は確認リンクの検証結果を記録する。
func (c *Collector) RecordEmailVerification(result string) {
	c.emailVerifications.WithLabelValues(result).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordHTTPRequest はHTTPリクエストのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordRegistration(string) {}
func (Nop) RecordVerificationEmail(string) {}
func (Nop) RecordEmailVerification(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordSessionsCleaned(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
