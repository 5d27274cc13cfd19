package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hitoshi/holdwatch/internal/metrics"
	"github.com/hitoshi/holdwatch/internal/model"
	"github.com/hitoshi/holdwatch/internal/status"
)

// Directory はグループとイベントを取得するリモートディレクトリのインターフェース。
type Directory interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
	ListEvents(ctx context.Context, group model.Group, start, end time.Time) ([]model.Event, error)
}

// ActionExecutor は承認済み操作の実行インターフェース。
type ActionExecutor interface {
	Execute(ctx context.Context, event model.Event, action ApprovedAction) model.Outcome
}

// SchedulerConfig はポーリングループの設定。
type SchedulerConfig struct {
	// Target はサインアップ対象のイベント名。
	Target string
	// JoinedStatus は参加済みを示すステータス値。
	JoinedStatus string
	// DaysAhead は取得するイベントの期間（今日からの日数）。
	DaysAhead int
	// Interval は通常のポーリング間隔。
	Interval time.Duration
	// ErrorDelay は想定外の失敗の後に待機する時間。
	ErrorDelay time.Duration
}

// Scheduler は取得→照合→ゲート→実行のサイクルを一定間隔で繰り返す。
// 1サイクルで実行する操作は最大1件で、最初に一致したイベントで打ち切る。
type Scheduler struct {
	directory Directory
	gate      *Gate
	executor  ActionExecutor
	status    *status.RunStatus
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       SchedulerConfig
	now       func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	directory Directory,
	gate *Gate,
	executor ActionExecutor,
	runStatus *status.RunStatus,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 180 * time.Second
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = 60 * time.Second
	}
	return &Scheduler{
		directory: directory,
		gate:      gate,
		executor:  executor,
		status:    runStatus,
		metrics:   collector,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start は起動直後に1サイクル実行し、以降は待機時間を挟んで繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("ポーリングスケジューラを開始しました",
		slog.String("target", s.cfg.Target),
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("error_delay", s.cfg.ErrorDelay),
	)

	for {
		delay := s.cfg.Interval
		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			delay = s.NextDelay(err)
			s.logger.Error("ポーリングサイクルの実行に失敗しました",
				slog.String("kind", string(model.KindOf(err))),
				slog.String("error", err.Error()),
				slog.Duration("next_delay", delay),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-timer.C:
		}
	}
	s.logger.Info("ポーリングスケジューラを停止しました")
}

// NextDelay はサイクルのエラーに応じた次回までの待機時間を返す。
// リモート取得の失敗は通常間隔、それ以外はフォールバック待機とする。
func (s *Scheduler) NextDelay(err error) time.Duration {
	if err == nil || model.KindOf(err) == model.KindRemoteUnavailable {
		return s.cfg.Interval
	}
	return s.cfg.ErrorDelay
}

// RunOnce は1回分のポーリングサイクルを実行する。
// リモート取得のエラーはサイクル全体を中断し、そのまま返す。
// サイクル内のpanicは回復し、想定外の失敗として返す。
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	result := metrics.CycleNoMatch
	s.status.BeginCycle()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("ポーリングサイクル中にpanicが発生しました",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			err = model.NewUnexpectedError("poll_cycle", fmt.Errorf("panic: %v", rec))
		}
		if err != nil {
			if model.KindOf(err) == model.KindRemoteUnavailable {
				result = metrics.CycleRemoteError
			} else {
				result = metrics.CycleUnexpected
			}
			if ctx.Err() == nil || !errors.Is(err, ctx.Err()) {
				s.status.RecordError(lastErrorMessage(err))
			}
		}
		s.status.EndCycle()
		s.metrics.RecordPollCycle(result, time.Since(start))
	}()

	result, err = s.scan(ctx)
	return err
}

// scan はグループとイベントを走査し、最初に一致したイベントを処理する。
func (s *Scheduler) scan(ctx context.Context) (string, error) {
	groups, err := s.directory.ListGroups(ctx)
	if err != nil {
		return metrics.CycleRemoteError, err
	}

	from := s.now()
	to := from.AddDate(0, 0, s.cfg.DaysAhead)

	for _, group := range groups {
		events, err := s.directory.ListEvents(ctx, group, from, to)
		if err != nil {
			// 1グループの失敗でもサイクル全体を中断する
			return metrics.CycleRemoteError, err
		}
		for _, event := range events {
			if !Matches(event, s.cfg.Target) {
				continue
			}
			s.logger.Info("対象イベントを検出しました",
				slog.Int64("group_id", group.ID),
				slog.String("group_name", group.Name),
				slog.Int64("event_id", event.ID),
				slog.String("event_name", event.Name),
				slog.String("start_time", event.StartTime),
				slog.String("status", event.Status),
			)
			return s.resolve(ctx, event), nil
		}
	}

	s.logger.Info("対象イベントは見つかりませんでした",
		slog.String("target", s.cfg.Target),
		slog.Int("group_count", len(groups)),
	)
	return metrics.CycleNoMatch, nil
}

// resolve は一致したイベントの参加状態を確認し、必要ならサインアップを実行する。
func (s *Scheduler) resolve(ctx context.Context, event model.Event) string {
	if event.HasStatus(s.cfg.JoinedStatus) {
		s.logger.Info("既に参加済みです",
			slog.Int64("event_id", event.ID),
			slog.String("event_name", event.Name),
		)
		return metrics.CycleAlreadyJoined
	}

	action, ok := s.gate.Approve(event)
	if !ok {
		s.metrics.RecordActionRejected()
		s.logger.Warn("安全な参加操作が見つからないため実行を拒否しました",
			slog.String("kind", string(model.KindActionRejected)),
			slog.Int64("event_id", event.ID),
			slog.String("event_name", event.Name),
			slog.Int("action_count", len(event.Actions)),
		)
		return metrics.CycleRejected
	}

	s.executor.Execute(ctx, event, action)
	return metrics.CycleActed
}

// lastErrorMessage は実行状態に残すエラーメッセージを組み立てる。
func lastErrorMessage(err error) string {
	if model.KindOf(err) == model.KindRemoteUnavailable {
		return fmt.Sprintf("[Fejl] API-kald fejlede: %v", err)
	}
	return fmt.Sprintf("Uventet fejl: %v", err)
}
