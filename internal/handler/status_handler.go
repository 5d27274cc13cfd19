package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/holdwatch/internal/middleware"
	"github.com/hitoshi/holdwatch/internal/model"
	"github.com/hitoshi/holdwatch/internal/status"
)

const (
	// defaultAttemptLimit は/api/attemptsのデフォルト件数。
	defaultAttemptLimit = 20
	// maxAttemptLimit は/api/attemptsの最大件数。
	maxAttemptLimit = 100
	// healthCheckTimeout はDBのPingのタイムアウト。
	healthCheckTimeout = 2 * time.Second
)

// StatusReader は稼働状況の読み取りインターフェース。
type StatusReader interface {
	Snapshot() status.Snapshot
	Uptime() time.Duration
	Report() string
}

// AttemptLister はサインアップ試行履歴の読み取りインターフェース。
type AttemptLister interface {
	ListRecent(ctx context.Context, limit int) ([]*model.SignupAttempt, error)
}

// HealthChecker はDB接続の確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// StatusHandler は稼働状況のHTTPハンドラー。
type StatusHandler struct {
	status   StatusReader
	attempts AttemptLister
	health   HealthChecker
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(st StatusReader, attempts AttemptLister, health HealthChecker) *StatusHandler {
	return &StatusHandler{status: st, attempts: attempts, health: health}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// statusResponse は稼働状況のレスポンス。
type statusResponse struct {
	status.Snapshot
	UptimeHours float64 `json:"uptime_hours"`
	Report      string  `json:"report"`
}

// attemptResponse はサインアップ試行のレスポンス。
type attemptResponse struct {
	ID          string    `json:"id"`
	EventID     int64     `json:"event_id"`
	EventName   string    `json:"event_name"`
	GroupName   string    `json:"group_name,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	Place       string    `json:"place,omitempty"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Result      string    `json:"result"`
	HTTPStatus  int       `json:"http_status,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Health はプロセスの生存確認を返す。
// GET /health
// ポーリングループが停止中の場合は503を返す。DBの障害はdatabaseフィールドで示すのみとする。
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if !h.status.Snapshot().Running {
		resp.Status = "stopping"
		code = http.StatusServiceUnavailable
	}

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		resp.Database = "ok"
		if err := h.health.PingContext(ctx); err != nil {
			resp.Database = "unavailable"
		}
	}

	writeJSON(w, code, resp)
}

// Status は稼働状況のスナップショットを返す。
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Snapshot:    h.status.Snapshot(),
		UptimeHours: h.status.Uptime().Hours(),
		Report:      h.status.Report(),
	})
}

// ListAttempts は新しい順にサインアップ試行履歴を返す。
// GET /api/attempts?limit=N
func (h *StatusHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttemptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, r, http.StatusBadRequest, middleware.CodeInvalidLimit, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAttemptLimit)
	}

	if h.attempts == nil {
		writeJSON(w, http.StatusOK, []attemptResponse{})
		return
	}

	attempts, err := h.attempts.ListRecent(r.Context(), limit)
	if err != nil {
		middleware.WriteAttemptsUnavailable(w, r)
		return
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			ID:          a.ID,
			EventID:     a.EventID,
			EventName:   a.EventName,
			GroupName:   a.GroupName,
			StartTime:   a.StartTime,
			Place:       a.Place,
			Method:      a.Method,
			Path:        a.Path,
			Result:      string(a.Result),
			HTTPStatus:  a.HTTPStatus,
			Reason:      a.Reason,
			AttemptedAt: a.AttemptedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
