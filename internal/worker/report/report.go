// Package report は稼働状況レポートの定期配信ジョブを提供する。
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/holdwatch/internal/status"
)

// Notifier はレポートの配信先インターフェース。
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Job はRunStatusのレポートを一定間隔で通知する。
// ポーリングループとは独立したタイマーで動作する。
type Job struct {
	status   *status.RunStatus
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration
}

// NewJob はJobの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値12時間を使用する。
func NewJob(runStatus *status.RunStatus, notifier Notifier, logger *slog.Logger, interval time.Duration) *Job {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &Job{
		status:   runStatus,
		notifier: notifier,
		logger:   logger,
		interval: interval,
	}
}

// Run はレポートを1回送信する。
func (j *Job) Run(ctx context.Context) {
	j.notifier.Notify(ctx, j.status.Report())
	j.logger.Info("稼働状況レポートを送信しました")
}

// Start は起動直後に1回送信し、以降はintervalごとに送信する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	j.logger.Info("稼働状況レポートジョブを開始しました", slog.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("稼働状況レポートジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
