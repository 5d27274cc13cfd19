package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/holdwatch/internal/security"
)

// webhookPayload はSlackのtextとDiscordのcontentの両方を持つ。
type webhookPayload struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// WebhookChannel は任意のURLへJSONをPOSTするチャネル。
// 送信先は起動時に静的検証し、接続時にはSSRFガード付きクライアントで再検証する。
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel はWebhookChannelを生成する。URLが検証に失敗した場合はエラーを返す。
func NewWebhookChannel(guard security.OutboundGuard, rawURL string, timeout time.Duration) (*WebhookChannel, error) {
	if err := guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("Webhook URLの検証に失敗しました: %w", err)
	}
	return &WebhookChannel{url: rawURL, client: guard.NewClient(timeout)}, nil
}

// Name はChannelを実装する。
func (c *WebhookChannel) Name() string { return "webhook" }

// Send はChannelを実装する。2xx以外の応答はエラーとする。
func (c *WebhookChannel) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Text: message, Content: message})
	if err != nil {
		return fmt.Errorf("Webhookペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("Webhookの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Webhookがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}
