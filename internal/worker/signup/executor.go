package signup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/holdwatch/internal/metrics"
	"github.com/hitoshi/holdwatch/internal/model"
	"github.com/hitoshi/holdwatch/internal/security"
	"github.com/hitoshi/holdwatch/internal/status"
)

// ActionPerformer は承認済み操作をリモートへ送信するインターフェース。
type ActionPerformer interface {
	PerformAction(ctx context.Context, method, path string, body any) (int, error)
}

// AttemptRecorder はサインアップ試行の監査記録を保存するインターフェース。
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *model.SignupAttempt) error
}

// Notifier は通知メッセージを外部チャネルへ配信するインターフェース。
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// joinRequest はサインアップ時に送信するリクエストボディ。
type joinRequest struct {
	ActivitiesUser joinStatus `json:"activities_user"`
}

type joinStatus struct {
	JoinedStatus int `json:"joined_status"`
	Picked       int `json:"picked"`
}

// ExecutorDeps はExecutorの依存関係をまとめた構造体。
type ExecutorDeps struct {
	Performer ActionPerformer
	Notifier  Notifier
	Recorder  AttemptRecorder
	Sanitizer security.TextSanitizer
	Status    *status.RunStatus
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
	// VersionPrefix はリモートのパスから取り除くAPIバージョン部分（例: "/v1"）。
	VersionPrefix string
	Now           func() time.Time
}

// Executor は承認済みのサインアップ操作を1回だけ実行し、結果を解釈する。
type Executor struct {
	deps ExecutorDeps
}

// NewExecutor はExecutorの新しいインスタンスを生成する。
func NewExecutor(deps ExecutorDeps) *Executor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Executor{deps: deps}
}

// IsSuccessStatus はサインアップ応答のステータスコードが成功を示すかを判定する。
// 200と201のみを成功とする。
func IsSuccessStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated
}

// NormalizePath はリモートが重複して付与するバージョン接頭辞をパスから取り除く。
func NormalizePath(path, versionPrefix string) string {
	prefix := strings.TrimRight(versionPrefix, "/")
	if prefix == "" {
		return path
	}
	if path == prefix {
		return "/"
	}
	if strings.HasPrefix(path, prefix+"/") {
		return strings.TrimPrefix(path, prefix)
	}
	return path
}

// Execute は承認済み操作を実行し、結果を返す。
// 成功時は実行状態を更新し、成功通知を1回だけ送信する。
// 失敗時は最終エラーを記録するが通知はしない。
func (e *Executor) Execute(ctx context.Context, event model.Event, action ApprovedAction) model.Outcome {
	path := NormalizePath(action.Path(), e.deps.VersionPrefix)
	body := joinRequest{ActivitiesUser: joinStatus{JoinedStatus: 1, Picked: 1}}

	e.deps.Logger.Info("サインアップを実行します",
		slog.Int64("event_id", event.ID),
		slog.String("event_name", event.Name),
		slog.String("method", action.Method()),
		slog.String("path", path),
	)

	start := time.Now()
	code, err := e.deps.Performer.PerformAction(ctx, action.Method(), path, body)
	duration := time.Since(start)

	var outcome model.Outcome
	switch {
	case err != nil:
		outcome = model.Failed(0, fmt.Sprintf("[Fejl] Ved tilmelding: %v", err))
	case IsSuccessStatus(code):
		outcome = model.Succeeded(code)
	default:
		outcome = model.Failed(code, fmt.Sprintf("❌ Tilmelding fejlede – statuskode %d", code))
	}

	if code > 0 {
		e.deps.Metrics.RecordActionHTTPStatus(code)
	}
	e.deps.Metrics.RecordSignup(outcome.Success)
	e.record(ctx, event, action.Method(), path, outcome)

	if !outcome.Success {
		e.deps.Status.RecordSignupFailure(outcome.Reason)
		e.deps.Logger.Error("サインアップに失敗しました",
			slog.Int64("event_id", event.ID),
			slog.String("event_name", event.Name),
			slog.Int("http_status", code),
			slog.String("reason", outcome.Reason),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return outcome
	}

	e.deps.Status.RecordSignupSuccess()
	e.deps.Logger.Info("サインアップに成功しました",
		slog.Int64("event_id", event.ID),
		slog.String("event_name", event.Name),
		slog.Int("http_status", code),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	if e.deps.Notifier != nil {
		e.deps.Notifier.Notify(ctx, e.successMessage(event))
	}
	return outcome
}

func (e *Executor) successMessage(event model.Event) string {
	return fmt.Sprintf("🎉 Succes! Du er nu tilmeldt %s.\n📅 Dato: %s\n📍 Lokation: %s",
		e.plain(event.Name, "?"),
		e.plain(event.StartTime, "Ukendt"),
		e.plain(event.Place, "Ukendt"),
	)
}

// plain はリモートの自由記述をプレーンテキストにする。空の場合はfallbackを返す。
func (e *Executor) plain(s, fallback string) string {
	if e.deps.Sanitizer != nil {
		s = e.deps.Sanitizer.Plain(s)
	} else {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return fallback
	}
	return s
}

// record は試行結果を監査記録として保存する。保存の失敗は結果に影響しない。
func (e *Executor) record(ctx context.Context, event model.Event, method, path string, outcome model.Outcome) {
	if e.deps.Recorder == nil {
		return
	}
	attempt := &model.SignupAttempt{
		EventID:     event.ID,
		EventName:   event.Name,
		GroupName:   event.GroupName,
		StartTime:   event.StartTime,
		Place:       event.Place,
		Method:      method,
		Path:        path,
		Result:      model.ResultOf(outcome),
		HTTPStatus:  outcome.HTTPStatus,
		Reason:      outcome.Reason,
		AttemptedAt: e.deps.Now(),
	}
	if err := e.deps.Recorder.Record(ctx, attempt); err != nil {
		e.deps.Logger.Error("サインアップ試行の記録に失敗しました",
			slog.Int64("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}
