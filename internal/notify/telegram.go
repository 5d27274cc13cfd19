package notify

import (
	"context"
)

// MessageSender はTelegramへのメッセージ送信インターフェース。
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TelegramChannel は設定されたチャットへ通知を送るチャネル。
type TelegramChannel struct {
	sender MessageSender
	chatID string
}

// NewTelegramChannel はTelegramChannelを生成する。
func NewTelegramChannel(sender MessageSender, chatID string) *TelegramChannel {
	return &TelegramChannel{sender: sender, chatID: chatID}
}

// Name はChannelを実装する。
func (c *TelegramChannel) Name() string { return "telegram" }

// Send はChannelを実装する。
func (c *TelegramChannel) Send(ctx context.Context, message string) error {
	return c.sender.SendMessage(ctx, c.chatID, message)
}
