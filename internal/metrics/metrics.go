// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type MetricsCollector interface {
	RecordMutation(operation string, err error)
	RecordUsersDeleted(count int)
	RecordInvalidation(err error)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	mutations     *prometheus.CounterVec
	usersDeleted  prometheus.Counter
	invalidations *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbot_http_requests_total",
			Help: "ルート・メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deskbot_http_request_duration_seconds",
			Help:    "ルート・メソッド別のHTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbot_user_mutations_total",
			Help: "操作・結果別のユーザー変更操作数",
		}, []string{"operation", "outcome"}),
		usersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskbot_users_deleted_total",
			Help: "削除されたユーザーの合計数",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbot_invalidations_total",
			Help: "結果別のキャッシュ無効化通知の配信数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.mutations,
		c.usersDeleted,
		c.invalidations,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordMutation はユーザー変更操作（create, update, delete, bulk_delete）の結果を記録する。
func (c *Collector) RecordMutation(operation string, err error) {
	c.mutations.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordUsersDeleted は削除されたユーザー数を記録する。
func (c *Collector) RecordUsersDeleted(count int) {
	c.usersDeleted.Add(float64(count))
}

// RecordInvalidation は無効化通知の配信結果を記録する。
func (c *Collector) RecordInvalidation(err error) {
	c.invalidations.WithLabelValues(outcome(err)).Inc()
}

// RecordRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// statusWriter はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware はリクエストごとにメトリクスを記録するミドルウェアを返す。
// ラベルのrouteにはchiのルートパターン（/users/{id}など）を使い、
// 未マッチのリクエストは"unmatched"として集計する。
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		c.RecordRequest(r.Method, route, status, time.Since(start))
	})
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
