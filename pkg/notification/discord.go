package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordSender Discord消息发送器
type DiscordSender struct {
	client *http.Client
}

// NewDiscordSender 创建Discord发送器实例
func NewDiscordSender(timeout time.Duration) *DiscordSender {
	return &DiscordSender{client: newHTTPClient(timeout)}
}

// DiscordEmbed Discord嵌入消息
type DiscordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// DiscordMessage Discord消息结构
type DiscordMessage struct {
	WebhookURL string         `json:"-"`
	Username   string         `json:"username,omitempty"`
	Content    string         `json:"content,omitempty"`
	Embeds     []DiscordEmbed `json:"embeds,omitempty"`
}

// SendMessage 发送Discord消息
func (s *DiscordSender) SendMessage(ctx context.Context, msg *DiscordMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	status, body, err := postJSON(ctx, s.client, msg.WebhookURL, nil, jsonData)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}

	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("discord webhook returned status %d: %s", status, body)
	}
	return nil
}
