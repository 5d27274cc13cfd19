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
// ポーリングワーカーと通知層から利用する。
type MetricsCollector interface {
	RecordPollCycle(result string, duration time.Duration)
	RecordSignup(success bool)
	RecordActionRejected()
	RecordActionHTTPStatus(statusCode int)
	RecordNotificationFailure(channel string)
}

// サイクル結果のラベル値
const (
	CycleNoMatch       = "no_match"
	CycleAlreadyJoined = "already_joined"
	CycleRejected      = "rejected"
	CycleActed         = "acted"
	CycleRemoteError   = "remote_error"
	CycleUnexpected    = "unexpected"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pollCycles        *prometheus.CounterVec
	cycleLatency      prometheus.Histogram
	signups           *prometheus.CounterVec
	actionsRejected   prometheus.Counter
	actionHTTPStatus  *prometheus.CounterVec
	notificationsFail *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdwatch_poll_cycles_total",
			Help: "結果別のポーリングサイクル数",
		}, []string{"result"}),
		cycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdwatch_poll_cycle_duration_seconds",
			Help:    "ポーリングサイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdwatch_signups_total",
			Help: "結果別のサインアップ実行数",
		}, []string{"outcome"}),
		actionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdwatch_actions_rejected_total",
			Help: "セーフティゲートが拒否したイベント数",
		}),
		actionHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdwatch_action_http_status_total",
			Help: "サインアップ実行のHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		notificationsFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdwatch_notification_failures_total",
			Help: "チャネル別の通知送信失敗数",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		c.pollCycles,
		c.cycleLatency,
		c.signups,
		c.actionsRejected,
		c.actionHTTPStatus,
		c.notificationsFail,
	)

	return c
}

// RecordPollCycle はサイクルの結果と所要時間を記録する。
func (c *Collector) RecordPollCycle(result string, duration time.Duration) {
	c.pollCycles.WithLabelValues(result).Inc()
	c.cycleLatency.Observe(duration.Seconds())
}

// RecordSignup はサインアップ実行の結果を記録する。
func (c *Collector) RecordSignup(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.signups.WithLabelValues(outcome).Inc()
}

// RecordActionRejected はセーフティゲートによる拒否を記録する。
func (c *Collector) RecordActionRejected() {
	c.actionsRejected.Inc()
}

// RecordActionHTTPStatus はサインアップ実行のHTTPステータスコードを記録する。
func (c *Collector) RecordActionHTTPStatus(statusCode int) {
	c.actionHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNotificationFailure は通知送信の失敗を記録する。
func (c *Collector) RecordNotificationFailure(channel string) {
	c.notificationsFail.WithLabelValues(channel).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordPollCycle(string, time.Duration) {}
func (Nop) RecordSignup(bool)                     {}
func (Nop) RecordActionRejected()                 {}
func (Nop) RecordActionHTTPStatus(int)            {}
func (Nop) RecordNotificationFailure(string)      {}
