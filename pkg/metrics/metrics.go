// Package metrics はPrometheusのコレクタと専用レジストリを提供する。
//
// グローバルなDefaultRegistererは使わず、サーバーごとにレジストリを持たせる。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はHTTPサーバーと上流呼び出しの計測値を保持する。
type Metrics struct {
	// Registry はコレクタの登録先。
	Registry *prometheus.Registry
	// requests はルート・メソッド・ステータス別のリクエスト数。
	requests *prometheus.CounterVec
	// latency はルート別の処理時間。
	latency *prometheus.HistogramVec
	// upstream は上流サービス呼び出しの所要時間。
	upstream *prometheus.HistogramVec
}

// New はnamespaceを接頭辞に持つコレクタを新しいレジストリに登録して返す。
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests handled, by route, method and status.",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent handling HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		upstream: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time spent waiting for the upstream core service.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "path", "outcome"}),
	}
}

// ObserveRequest は処理済みリクエスト1件を記録する。
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpstream は上流呼び出し1件を記録する。
// outcomeにはステータスコード、または通信失敗時は "error" を渡す。
func (m *Metrics) ObserveUpstream(method, path, outcome string, d time.Duration) {
	m.upstream.WithLabelValues(method, path, outcome).Observe(d.Seconds())
}

// Handler はレジストリの内容を公開するHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
