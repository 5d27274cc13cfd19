// Package status はウォッチャーの稼働状況（RunStatus）を提供する。
// ポーリングタスクが書き込み、ステータス報告や管理コマンドのタスクが読み取る。
package status

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase はスケジューラの状態。
type Phase string

const (
	// PhaseIdle はサイクル間の待機中。
	PhaseIdle Phase = "idle"
	// PhasePolling はサイクル実行中。
	PhasePolling Phase = "polling"
)

// Snapshot はRunStatusのある時点のコピー。読み取り側はこれを使う。
type Snapshot struct {
	StartTime         time.Time  `json:"start_time"`
	PollCycles        int        `json:"poll_cycles"`
	SignupAttempts    int        `json:"signup_attempts"`
	SuccessfulSignups int        `json:"successful_signups"`
	FailedSignups     int        `json:"failed_signups"`
	LastCheck         *time.Time `json:"last_check,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	Running           bool       `json:"running"`
	Phase             Phase      `json:"phase"`
}

// RunStatus はプロセス内で共有される稼働状況。
// 全ての更新はミューテックスで保護され、I/O中にロックを保持しない。
type RunStatus struct {
	mu   sync.RWMutex
	now  func() time.Time
	snap Snapshot
}

// New はRunStatusを生成する。nowがnilの場合はtime.Nowを使う。
func New(now func() time.Time) *RunStatus {
	if now == nil {
		now = time.Now
	}
	return &RunStatus{
		now: now,
		snap: Snapshot{
			StartTime: now(),
			Running:   true,
			Phase:     PhaseIdle,
		},
	}
}

// BeginCycle はポーリングサイクルの開始を記録する。
func (s *RunStatus) BeginCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now()
	s.snap.PollCycles++
	s.snap.LastCheck = &t
	s.snap.Phase = PhasePolling
}

// EndCycle はサイクルの終了を記録する。
func (s *RunStatus) EndCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Phase = PhaseIdle
}

// RecordSignupSuccess はサインアップ成功を記録する。
func (s *RunStatus) RecordSignupSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.SignupAttempts++
	s.snap.SuccessfulSignups++
}

// RecordSignupFailure はサインアップ失敗を記録し、理由を最終エラーとして保持する。
func (s *RunStatus) RecordSignupFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.SignupAttempts++
	s.snap.FailedSignups++
	s.snap.LastError = reason
}

// RecordError は最終エラーを記録する。
func (s *RunStatus) RecordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

// SetRunning は稼働フラグを設定する。
func (s *RunStatus) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Running = running
}

// Running は稼働フラグを返す。
func (s *RunStatus) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Running
}

// Snapshot は現在の状態のコピーを返す。
func (s *RunStatus) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if s.snap.LastCheck != nil {
		t := *s.snap.LastCheck
		snap.LastCheck = &t
	}
	return snap
}

// Uptime は起動からの経過時間を返す。
func (s *RunStatus) Uptime() time.Duration {
	s.mu.RLock()
	start := s.snap.StartTime
	s.mu.RUnlock()
	return s.now().Sub(start)
}

// Report は人が読むためのステータスレポートを生成する。
func (s *RunStatus) Report() string {
	snap := s.Snapshot()
	hours := s.Uptime().Hours()

	lastCheck := "Never"
	if snap.LastCheck != nil {
		lastCheck = snap.LastCheck.Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	b.WriteString("📊 Holdsport Bot Status Report\n")
	fmt.Fprintf(&b, "⏱️ Uptime: %.1f hours\n", hours)
	fmt.Fprintf(&b, "🔄 Total checks: %d\n", snap.PollCycles)
	fmt.Fprintf(&b, "✅ Successful signups: %d\n", snap.SuccessfulSignups)
	if snap.FailedSignups > 0 {
		fmt.Fprintf(&b, "⚠️ Failed signups: %d\n", snap.FailedSignups)
	}
	fmt.Fprintf(&b, "⏰ Last check: %s\n", lastCheck)
	if snap.LastError != "" {
		fmt.Fprintf(&b, "❌ Last error: %s\n", snap.LastError)
	}
	return b.String()
}
