// Package holdsport はHoldsport APIのクライアントを提供する。
// チーム一覧と期間内のアクティビティの取得、およびサインアップ操作の実行を含む。
package holdsport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/holdwatch/internal/model"
)

const (
	// DefaultBaseURL はHoldsport APIのベースURL。
	DefaultBaseURL = "https://api.holdsport.dk/v1"
	// userAgent はリクエストに付与するUser-Agent。
	userAgent = "Holdwatch/1.0"
	// dateLayout は期間クエリの日付形式。
	dateLayout = "2006-01-02"
	// maxBodySize はレスポンスボディの最大読み取りサイズ。
	maxBodySize = 5 << 20
)

// ClientConfig はClientの設定パラメータ。
type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
	// RatePerSecond はAPI呼び出しの最大レート（0以下で無制限）。
	RatePerSecond float64
	Burst         int
}

// Client はHoldsport APIのクライアント。
// 全てのリクエストにBasic認証を付与し、レートリミッターで呼び出し間隔を制御する。
// キャッシュは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	baseURL    string
	username   string
	password   string
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClient側で設定すること。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, burst),
		baseURL:    base,
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

// VersionPrefix はベースURLのパス部分（例: "/v1"）を返す。
// アクションのパスにはこの接頭辞が重複して含まれるため、実行前に除去する。
func (c *Client) VersionPrefix() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

// ListGroups はユーザーが所属するチームの一覧を取得する。
func (c *Client) ListGroups(ctx context.Context) ([]model.Group, error) {
	var teams []team
	if err := c.getJSON(ctx, "list_groups", "/teams", nil, &teams); err != nil {
		return nil, err
	}

	groups := make([]model.Group, 0, len(teams))
	for _, t := range teams {
		groups = append(groups, t.toModel())
	}
	return groups, nil
}

// ListEvents は指定チームの[start, end]期間のアクティビティを取得する。
func (c *Client) ListEvents(ctx context.Context, group model.Group, start, end time.Time) ([]model.Event, error) {
	q := url.Values{}
	q.Set("date", start.Format(dateLayout))
	q.Set("end_date", end.Format(dateLayout))

	path := "/teams/" + strconv.FormatInt(group.ID, 10) + "/activities"

	var activities []activity
	if err := c.getJSON(ctx, "list_events", path, q, &activities); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(activities))
	for _, a := range activities {
		events = append(events, a.toModel(group))
	}
	return events, nil
}

// PerformAction は状態変更リクエストを1回だけ送信し、HTTPステータスコードを返す。
// ステータスコードの解釈は呼び出し元が行う。リトライはしない。
func (c *Client) PerformAction(ctx context.Context, method, path string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("レート制限の待機が中断されました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("アクションの実行リクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	return resp.StatusCode, nil
}

// getJSON はGETリクエストを送信し、2xxのレスポンスをoutにデコードする。
// 通信失敗と2xx以外はKindRemoteUnavailable、デコード失敗はKindUnexpectedとして返す。
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewRemoteUnavailableError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.NewUnexpectedError(op, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Holdsport APIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewRemoteUnavailableError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Holdsport APIがエラーステータスを返しました",
			slog.String("op", op),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewRemoteUnavailableError(op, fmt.Errorf("Holdsport APIがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.NewRemoteUnavailableError(op, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Holdsport APIのレスポンスのパースに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return model.NewUnexpectedError(op, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}

	c.logger.Debug("Holdsport APIの呼び出しが完了しました",
		slog.String("op", op),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}
