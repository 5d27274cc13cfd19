package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- モック定義 ---

// mockChannel はChannelのテスト用モック。
type mockChannel struct {
	name     string
	sendFunc func(ctx context.Context, message string) error

	mu       sync.Mutex
	messages []string
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Send(ctx context.Context, message string) error {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, message)
	}
	return nil
}

// mockMetrics は通知失敗の記録のみを保持する。
type mockMetrics struct {
	failures []string
}

func (m *mockMetrics) RecordPollCycle(string, time.Duration) {}
func (m *mockMetrics) RecordSignup(bool)                     {}
func (m *mockMetrics) RecordActionRejected()                 {}
func (m *mockMetrics) RecordActionHTTPStatus(int)            {}
func (m *mockMetrics) RecordNotificationFailure(channel string) {
	m.failures = append(m.failures, channel)
}

// mockGuard は検証結果とクライアントを差し替えられるOutboundGuard。
type mockGuard struct {
	validateErr error
	client      *http.Client
}

func (g *mockGuard) ValidateURL(string) error             { return g.validateErr }
func (g *mockGuard) NewClient(time.Duration) *http.Client { return g.client }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestDispatcher_FansOutToAllChannels(t *testing.T) {
	var buf bytes.Buffer
	a := &mockChannel{name: "a"}
	b := &mockChannel{name: "b"}
	d := NewDispatcher(newTestLogger(&buf), nil, time.Second, a, b)

	d.Notify(context.Background(), "hej")

	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Errorf("a=%v b=%v, want one message each", a.messages, b.messages)
	}
	if got := d.Channels(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Channels() = %v", got)
	}
}

func TestDispatcher_FailureIsSwallowedAndCounted(t *testing.T) {
	var buf bytes.Buffer
	m := &mockMetrics{}
	failing := &mockChannel{name: "telegram", sendFunc: func(ctx context.Context, message string) error {
		return errors.New("chat not found")
	}}
	ok := &mockChannel{name: "webhook"}
	d := NewDispatcher(newTestLogger(&buf), m, time.Second, failing, ok)

	d.Notify(context.Background(), "hej")

	if len(ok.messages) != 1 {
		t.Error("失敗したチャネルの後も送信を継続すべき")
	}
	if len(m.failures) != 1 || m.failures[0] != "telegram" {
		t.Errorf("failures = %v", m.failures)
	}
	var entry map[string]any
	line := strings.SplitN(strings.TrimSpace(buf.String()), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if entry["kind"] != "NOTIFICATION_FAILED" || entry["channel"] != "telegram" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestDispatcher_AppliesPerSendTimeout(t *testing.T) {
	var buf bytes.Buffer
	slow := &mockChannel{name: "slow", sendFunc: func(ctx context.Context, message string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d := NewDispatcher(newTestLogger(&buf), nil, 20*time.Millisecond, slow)

	done := make(chan struct{})
	go func() {
		d.Notify(context.Background(), "hej")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("送信タイムアウトが適用されていない")
	}
}

func TestDispatcher_NoChannels(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(newTestLogger(&buf), nil, 0)
	d.Notify(context.Background(), "hej")
	if buf.Len() != 0 {
		t.Errorf("チャネルなしでは何も出力しないはず: %s", buf.String())
	}
}

type mockSender struct {
	chatID, text string
	err          error
}

func (m *mockSender) SendMessage(_ context.Context, chatID, text string) error {
	m.chatID, m.text = chatID, text
	return m.err
}

func TestTelegramChannel_Send(t *testing.T) {
	sender := &mockSender{}
	ch := NewTelegramChannel(sender, "42")

	if err := ch.Send(context.Background(), "hej"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if sender.chatID != "42" || sender.text != "hej" {
		t.Errorf("sent %q to %q", sender.text, sender.chatID)
	}
	if ch.Name() != "telegram" {
		t.Errorf("Name() = %q", ch.Name())
	}
}

func TestWebhookChannel_PostsSlackAndDiscordFields(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch, err := NewWebhookChannel(&mockGuard{client: server.Client()}, server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewWebhookChannel returned error: %v", err)
	}
	if err := ch.Send(context.Background(), "🎉 Succes!"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got.Text != "🎉 Succes!" || got.Content != "🎉 Succes!" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookChannel_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ch, err := NewWebhookChannel(&mockGuard{client: server.Client()}, server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewWebhookChannel returned error: %v", err)
	}
	if err := ch.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestNewWebhookChannel_RejectsInvalidURL(t *testing.T) {
	_, err := NewWebhookChannel(&mockGuard{validateErr: errors.New("blocked IP address")}, "http://10.0.0.1/hook", time.Second)
	if err == nil {
		t.Fatal("expected validation error")
	}
}
