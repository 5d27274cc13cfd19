package signup

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/holdwatch/internal/model"
)

// --- モック定義 ---

// mockDirectory はDirectoryのテスト用モック。
type mockDirectory struct {
	listGroupsFunc func(ctx context.Context) ([]model.Group, error)
	listEventsFunc func(ctx context.Context, group model.Group, start, end time.Time) ([]model.Event, error)

	mu         sync.Mutex
	eventCalls []int64
}

func (m *mockDirectory) ListGroups(ctx context.Context) ([]model.Group, error) {
	if m.listGroupsFunc != nil {
		return m.listGroupsFunc(ctx)
	}
	return nil, nil
}

func (m *mockDirectory) ListEvents(ctx context.Context, group model.Group, start, end time.Time) ([]model.Event, error) {
	m.mu.Lock()
	m.eventCalls = append(m.eventCalls, group.ID)
	m.mu.Unlock()
	if m.listEventsFunc != nil {
		return m.listEventsFunc(ctx, group, start, end)
	}
	return nil, nil
}

func (m *mockDirectory) eventCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.eventCalls)
}

// performCall はPerformActionの呼び出し記録。
type performCall struct {
	method string
	path   string
	body   any
}

// mockPerformer はActionPerformerのテスト用モック。
type mockPerformer struct {
	performFunc func(ctx context.Context, method, path string, body any) (int, error)

	mu    sync.Mutex
	calls []performCall
}

func (m *mockPerformer) PerformAction(ctx context.Context, method, path string, body any) (int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, performCall{method: method, path: path, body: body})
	m.mu.Unlock()
	if m.performFunc != nil {
		return m.performFunc(ctx, method, path, body)
	}
	return 201, nil
}

func (m *mockPerformer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockNotifier は送信されたメッセージを記録する。
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

func (m *mockNotifier) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// mockRecorder はAttemptRecorderのテスト用モック。
type mockRecorder struct {
	recordFunc func(ctx context.Context, attempt *model.SignupAttempt) error

	mu       sync.Mutex
	attempts []*model.SignupAttempt
}

func (m *mockRecorder) Record(ctx context.Context, attempt *model.SignupAttempt) error {
	m.mu.Lock()
	m.attempts = append(m.attempts, attempt)
	m.mu.Unlock()
	if m.recordFunc != nil {
		return m.recordFunc(ctx, attempt)
	}
	return nil
}

// mockMetrics はMetricsCollectorのテスト用モック。
type mockMetrics struct {
	mu         sync.Mutex
	cycles     []string
	signups    []bool
	rejected   int
	httpStatus []int
}

func (m *mockMetrics) RecordPollCycle(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, result)
}

func (m *mockMetrics) RecordSignup(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signups = append(m.signups, success)
}

func (m *mockMetrics) RecordActionRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *mockMetrics) RecordActionHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpStatus = append(m.httpStatus, code)
}

func (m *mockMetrics) RecordNotificationFailure(string) {}

func (m *mockMetrics) lastCycle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cycles) == 0 {
		return ""
	}
	return m.cycles[len(m.cycles)-1]
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
