package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrWebhookNotFound = errors.New("webhook URL does not exist")
	ErrWebhookStatus   = errors.New("webhook request failed")
)

// WebhookMessage 已构建完成的 webhook 请求
type WebhookMessage struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body"`
}

// WebhookSender webhook 发送器
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender 创建webhook发送器
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: newHTTPClient(timeout)}
}

// Send 发送webhook，非 2xx 状态转换为可读错误
func (s *WebhookSender) Send(ctx context.Context, msg *WebhookMessage) error {
	status, _, err := postJSON(ctx, s.client, msg.URL, msg.Headers, msg.Body)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	switch {
	case isSuccess(status):
		return nil
	case status == http.StatusNotFound:
		return ErrWebhookNotFound
	default:
		return fmt.Errorf("%w with status code %d", ErrWebhookStatus, status)
	}
}
