// Package notify は通知メッセージを外部チャネルへベストエフォートで配信する。
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/holdwatch/internal/metrics"
	"github.com/hitoshi/holdwatch/internal/model"
)

// defaultSendTimeout はチャネルごとの送信タイムアウトのデフォルト値。
const defaultSendTimeout = 10 * time.Second

// Notifier は通知を配信するインターフェース。
// 送信の失敗は呼び出し元に返さない。
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Channel は1つの通知先。
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Dispatcher は登録された全チャネルへ通知を配信する。
// チャネルが1つもない場合は何もしない。
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルト値10秒を使用する。
func NewDispatcher(logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		metrics:  collector,
		logger:   logger,
	}
}

// Channels は登録されているチャネル名の一覧を返す。
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify は全チャネルへ順に送信する。各送信には個別のタイムアウトを設定する。
// 失敗はログとメトリクスに記録し、他のチャネルへの送信は継続する。
func (d *Dispatcher) Notify(ctx context.Context, message string) {
	for _, ch := range d.channels {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := ch.Send(sendCtx, message)
		cancel()

		if err != nil {
			d.metrics.RecordNotificationFailure(ch.Name())
			d.logger.Warn("通知の送信に失敗しました",
				slog.String("kind", string(model.KindNotificationFailed)),
				slog.String("channel", ch.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.logger.Debug("通知を送信しました", slog.String("channel", ch.Name()))
	}
}
