// Package telegram はTelegram Bot APIの最小限のクライアントを提供する。
// 通知用のsendMessageと、管理コマンド受信用のgetUpdates（ロングポーリング）のみを扱う。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL はTelegram Bot APIのベースURL。
	DefaultBaseURL = "https://api.telegram.org"
	// maxBodySize はレスポンスボディの最大読み取りサイズ。
	maxBodySize = 1 << 20
	// sendRate は1秒あたりの最大送信数（同一チャットへの制限に合わせる）。
	sendRate = 1
	// sendBurst は連続送信を許可する数。
	sendBurst = 3
)

// User はメッセージの送信者。
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat はメッセージが属するチャット。
type Chat struct {
	ID int64 `json:"id"`
}

// Message は受信したメッセージ。
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update はgetUpdatesで受信する更新。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// apiResponse はBot APIの共通レスポンス形式。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// sendMessageRequest はsendMessageのリクエストボディ。
type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// getUpdatesRequest はgetUpdatesのリクエストボディ。
type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Client はTelegram Bot APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	baseURL    string
	token      string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, token string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(sendRate, sendBurst),
		baseURL:    base,
		token:      token,
	}
}

// SendMessage は指定チャットへテキストメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("送信の待機が中断されました: %w", err)
	}
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
}

// GetUpdates はoffset以降の更新をロングポーリングで取得する。
// timeoutはサーバー側の待機秒数。HTTPクライアントのタイムアウトはこれより長くすること。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call はBot APIのメソッドをJSONで呼び出し、resultをoutにデコードする。
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// URLにトークンが含まれるため、エラーメッセージからは取り除く
		return fmt.Errorf("Telegram APIの呼び出しに失敗しました (%s): %s", method, c.redact(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("Telegram APIのレスポンスのパースに失敗しました (status %d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Telegram APIがエラーを返しました (%s, status %d): %s", method, resp.StatusCode, apiResp.Description)
	}

	if out != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("Telegram APIの結果のパースに失敗しました: %w", err)
		}
	}

	c.logger.Debug("Telegram APIの呼び出しが完了しました",
		slog.String("method", method),
		slog.Int("http_status", resp.StatusCode),
	)
	return nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "<redacted>")
}
