// Package admin はTelegram経由の管理コマンド（/status /stop /start /restart）を処理する。
// コアのループには直接触れず、RunStatusとControllerのみを介して操作する。
package admin

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/holdwatch/internal/status"
	"github.com/hitoshi/holdwatch/internal/telegram"
)

// 管理コマンドへの応答メッセージ
const (
	msgUnauthorized   = "⛔️ You are not authorized to use this command."
	msgStopping       = "🛑 Stopping Holdsport Bot..."
	msgAlreadyRunning = "🤖 Holdsport Bot is already running!"
	msgRestarting     = "🔄 Restarting Holdsport Bot..."
)

const (
	// defaultPollTimeout はgetUpdatesのロングポーリング待機時間。
	defaultPollTimeout = 30 * time.Second
	// defaultRetryDelay はgetUpdates失敗時の再試行までの待機時間。
	defaultRetryDelay = 5 * time.Second
	// confirmTimeout は終了時に処理済みoffsetを確定させるgetUpdatesの上限。
	confirmTimeout = 5 * time.Second
)

// Controller はプロセスの停止・再起動を要求するインターフェース。
type Controller interface {
	Stop()
	Restart()
}

// UpdateSource は更新を取得するインターフェース。
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Replier はチャットへ応答を送るインターフェース。
type Replier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Listener は管理コマンドを受信して処理する。
// 送信者のIDが管理者IDと一致する場合のみコマンドを実行する。
type Listener struct {
	source      UpdateSource
	replier     Replier
	status      *status.RunStatus
	controller  Controller
	adminID     int64
	logger      *slog.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
	offset      int64
	// confirmed はサーバーが受理済みのoffset。getUpdatesが成功した時点で進む。
	confirmed int64
}

// NewListener はListenerの新しいインスタンスを生成する。
func NewListener(
	source UpdateSource,
	replier Replier,
	runStatus *status.RunStatus,
	controller Controller,
	adminID int64,
	logger *slog.Logger,
) *Listener {
	return &Listener{
		source:      source,
		replier:     replier,
		status:      runStatus,
		controller:  controller,
		adminID:     adminID,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
		retryDelay:  defaultRetryDelay,
	}
}

// Start はコンテキストがキャンセルされるまで更新を取得し続ける。
// 終了前に処理済みの更新を確定させ、再起動後に同じコマンドを再び受け取らないようにする。
func (l *Listener) Start(ctx context.Context) {
	l.logger.Info("管理コマンドの受信を開始しました", slog.Int64("admin_id", l.adminID))
	defer l.confirmOffset()

	for {
		offset := l.offset
		updates, err := l.source.GetUpdates(ctx, offset, l.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("管理コマンドの受信を停止しました")
				return
			}
			l.logger.Warn("管理コマンドの取得に失敗しました",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", l.retryDelay),
			)
			timer := time.NewTimer(l.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				l.logger.Info("管理コマンドの受信を停止しました")
				return
			case <-timer.C:
			}
			continue
		}
		l.confirmed = offset

		for _, u := range updates {
			if u.UpdateID >= l.offset {
				l.offset = u.UpdateID + 1
			}
			l.Handle(ctx, u)
		}

		if ctx.Err() != nil {
			l.logger.Info("管理コマンドの受信を停止しました")
			return
		}
	}
}

// confirmOffset は未確定のoffsetをtimeout 0のgetUpdatesでサーバーへ伝える。
// 呼び出し時点で共有コンテキストはキャンセル済みのため、新しいコンテキストを使う。
func (l *Listener) confirmOffset() {
	if l.offset <= l.confirmed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	if _, err := l.source.GetUpdates(ctx, l.offset, 0); err != nil {
		l.logger.Warn("処理済み管理コマンドの確定に失敗しました",
			slog.Int64("offset", l.offset),
			slog.String("error", err.Error()),
		)
		return
	}
	l.confirmed = l.offset
	l.logger.Debug("処理済み管理コマンドを確定しました", slog.Int64("offset", l.offset))
}

// Handle は1件の更新を処理する。コマンド以外のメッセージは無視する。
func (l *Listener) Handle(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil {
		return
	}
	cmd := parseCommand(msg.Text)
	if cmd == "" {
		return
	}

	var senderID int64
	if msg.From != nil {
		senderID = msg.From.ID
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if !l.authorized(senderID) {
		l.logger.Warn("権限のないユーザーからの管理コマンドを拒否しました",
			slog.String("command", cmd),
			slog.Int64("sender_id", senderID),
		)
		l.reply(ctx, chatID, msgUnauthorized)
		return
	}

	l.logger.Info("管理コマンドを受信しました", slog.String("command", cmd))

	switch cmd {
	case "status":
		l.reply(ctx, chatID, l.status.Report())
	case "stop":
		l.reply(ctx, chatID, msgStopping)
		l.controller.Stop()
	case "start":
		l.reply(ctx, chatID, msgAlreadyRunning)
	case "restart":
		l.reply(ctx, chatID, msgRestarting)
		l.controller.Restart()
	default:
		l.logger.Debug("未知のコマンドを無視しました", slog.String("command", cmd))
	}
}

func (l *Listener) authorized(senderID int64) bool {
	return l.adminID != 0 && senderID == l.adminID
}

func (l *Listener) reply(ctx context.Context, chatID, text string) {
	if err := l.replier.SendMessage(ctx, chatID, text); err != nil {
		l.logger.Warn("管理コマンドへの応答に失敗しました",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// parseCommand は"/status@holdwatch_bot arg"のような文字列から"status"を取り出す。
func parseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
