package admin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/holdwatch/internal/status"
	"github.com/hitoshi/holdwatch/internal/telegram"
)

// --- モック定義 ---

type reply struct {
	chatID string
	text   string
}

type mockReplier struct {
	mu      sync.Mutex
	replies []reply
}

func (m *mockReplier) SendMessage(_ context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply{chatID: chatID, text: text})
	return nil
}

func (m *mockReplier) all() []reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reply(nil), m.replies...)
}

type mockController struct {
	stops    atomic.Int32
	restarts atomic.Int32
}

func (m *mockController) Stop()    { m.stops.Add(1) }
func (m *mockController) Restart() { m.restarts.Add(1) }

type mockSource struct {
	getUpdatesFunc func(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

func (m *mockSource) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
	return m.getUpdatesFunc(ctx, offset, timeout)
}

const adminID = 1001

func newTestListener(source UpdateSource) (*Listener, *mockReplier, *mockController) {
	var buf bytes.Buffer
	replier := &mockReplier{}
	ctrl := &mockController{}
	l := NewListener(source, replier, status.New(nil), ctrl, adminID,
		slog.New(slog.NewJSONHandler(&buf, nil)))
	return l, replier, ctrl
}

func command(from int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From: &telegram.User{ID: from},
			Chat: telegram.Chat{ID: from},
			Text: text,
		},
	}
}

func TestParseCommand(t *testing.T) {
	tests := map[string]string{
		"/status":                "status",
		"/STOP":                  "stop",
		"/restart@holdwatch_bot": "restart",
		"  /start now":           "start",
		"status":                 "",
		"":                       "",
	}
	for in, want := range tests {
		if got := parseCommand(in); got != want {
			t.Errorf("parseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandle_UnauthorizedSender(t *testing.T) {
	l, replier, ctrl := newTestListener(nil)

	for _, cmd := range []string{"/status", "/stop", "/start", "/restart"} {
		l.Handle(context.Background(), command(999, cmd))
	}

	replies := replier.all()
	if len(replies) != 4 {
		t.Fatalf("replies = %d, want 4", len(replies))
	}
	for _, r := range replies {
		if r.text != msgUnauthorized {
			t.Errorf("reply = %q, want unauthorized", r.text)
		}
	}
	if ctrl.stops.Load() != 0 || ctrl.restarts.Load() != 0 {
		t.Error("権限のないユーザーのコマンドでプロセスを操作してはならない")
	}
}

func TestHandle_MissingSenderIsUnauthorized(t *testing.T) {
	l, replier, ctrl := newTestListener(nil)
	u := command(adminID, "/stop")
	u.Message.From = nil

	l.Handle(context.Background(), u)

	if ctrl.stops.Load() != 0 {
		t.Error("送信者不明のコマンドを実行してはならない")
	}
	if r := replier.all(); len(r) != 1 || r[0].text != msgUnauthorized {
		t.Errorf("replies = %v", r)
	}
}

func TestHandle_AdminCommands(t *testing.T) {
	tests := []struct {
		cmd          string
		wantText     string
		wantStops    int32
		wantRestarts int32
	}{
		{"/status", "Holdsport Bot Status Report", 0, 0},
		{"/stop", msgStopping, 1, 0},
		{"/start", msgAlreadyRunning, 0, 0},
		{"/restart", msgRestarting, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			l, replier, ctrl := newTestListener(nil)
			l.Handle(context.Background(), command(adminID, tt.cmd))

			replies := replier.all()
			if len(replies) != 1 || !strings.Contains(replies[0].text, tt.wantText) {
				t.Errorf("replies = %v, want %q", replies, tt.wantText)
			}
			if replies[0].chatID != "1001" {
				t.Errorf("chatID = %q", replies[0].chatID)
			}
			if ctrl.stops.Load() != tt.wantStops || ctrl.restarts.Load() != tt.wantRestarts {
				t.Errorf("stops=%d restarts=%d", ctrl.stops.Load(), ctrl.restarts.Load())
			}
		})
	}
}

func TestHandle_IgnoresPlainMessages(t *testing.T) {
	l, replier, _ := newTestListener(nil)
	l.Handle(context.Background(), command(adminID, "hej"))
	l.Handle(context.Background(), telegram.Update{UpdateID: 2})
	if len(replier.all()) != 0 {
		t.Error("コマンド以外に応答してはならない")
	}
}

func TestStart_AdvancesOffsetAndStops(t *testing.T) {
	var offsets []int64
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	source := &mockSource{getUpdatesFunc: func(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
		mu.Lock()
		offsets = append(offsets, offset)
		calls++
		n := calls
		mu.Unlock()
		switch n {
		case 1:
			u := command(adminID, "/start")
			u.UpdateID = 41
			return []telegram.Update{u}, nil
		case 2:
			return nil, errors.New("temporary")
		default:
			cancel()
			return nil, ctx.Err()
		}
	}}
	l, replier, _ := newTestListener(source)
	l.retryDelay = time.Millisecond

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(offsets) < 3 || offsets[0] != 0 || offsets[1] != 42 || offsets[2] != 42 {
		t.Errorf("offsets = %v, want [0 42 42]", offsets)
	}
	if len(replier.all()) != 1 {
		t.Errorf("replies = %v", replier.all())
	}
}

type cancelController struct {
	cancel   context.CancelFunc
	restarts atomic.Int32
}

func (c *cancelController) Stop() { c.cancel() }
func (c *cancelController) Restart() {
	c.restarts.Add(1)
	c.cancel()
}

type getUpdatesCall struct {
	offset   int64
	timeout  time.Duration
	canceled bool
}

// TestStart_RestartConfirmsOffsetBeforeExit は/restartで終了する前に処理済みのoffsetを
// サーバーへ送ることを検証する。送らないと再起動後に同じ/restartを再び受け取る。
func TestStart_RestartConfirmsOffsetBeforeExit(t *testing.T) {
	for _, cmd := range []string{"/restart", "/stop"} {
		t.Run(cmd, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var mu sync.Mutex
			var calls []getUpdatesCall
			source := &mockSource{getUpdatesFunc: func(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
				mu.Lock()
				calls = append(calls, getUpdatesCall{offset: offset, timeout: timeout, canceled: ctx.Err() != nil})
				n := len(calls)
				mu.Unlock()
				if n == 1 {
					u := command(adminID, cmd)
					u.UpdateID = 77
					return []telegram.Update{u}, nil
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, nil
			}}

			var buf bytes.Buffer
			ctrl := &cancelController{cancel: cancel}
			l := NewListener(source, &mockReplier{}, status.New(nil), ctrl, adminID,
				slog.New(slog.NewJSONHandler(&buf, nil)))

			done := make(chan struct{})
			go func() {
				l.Start(ctx)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Start がコマンド処理後に終了しなかった")
			}

			mu.Lock()
			defer mu.Unlock()
			if len(calls) != 2 {
				t.Fatalf("getUpdates呼び出し = %+v, want 2回", calls)
			}
			last := calls[1]
			if last.offset != 78 {
				t.Errorf("確定用offset = %d, want 78", last.offset)
			}
			if last.timeout != 0 {
				t.Errorf("確定用timeout = %v, want 0", last.timeout)
			}
			if last.canceled {
				t.Error("確定用のgetUpdatesはキャンセル済みのコンテキストで呼ばれてはならない")
			}
		})
	}
}

// TestStart_NoConfirmWhenNothingConsumed は未処理の更新がなければ確定呼び出しをしないことを検証する。
func TestStart_NoConfirmWhenNothingConsumed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	source := &mockSource{getUpdatesFunc: func(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
		calls.Add(1)
		cancel()
		return nil, ctx.Err()
	}}
	l, _, _ := newTestListener(source)

	l.Start(ctx)

	if got := calls.Load(); got != 1 {
		t.Errorf("getUpdates呼び出し回数 = %d, want 1", got)
	}
}
