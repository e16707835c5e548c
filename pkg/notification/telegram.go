package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrTelegramNotConfigured = errors.New("telegram bot token not configured")

// TelegramSender Telegram Bot 消息发送器
type TelegramSender struct {
	apiBase  string
	botToken string
	client   *http.Client
}

// NewTelegramSender 创建Telegram发送器
func NewTelegramSender(apiBase, botToken string, timeout time.Duration) *TelegramSender {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramSender{
		apiBase:  strings.TrimRight(apiBase, "/"),
		botToken: botToken,
		client:   newHTTPClient(timeout),
	}
}

// TelegramMessage sendMessage 请求体
type TelegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage 发送Telegram消息
func (s *TelegramSender) SendMessage(ctx context.Context, msg *TelegramMessage) error {
	if s.botToken == "" {
		return ErrTelegramNotConfigured
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	status, body, err := postJSON(ctx, s.client, endpoint, nil, jsonData)
	if err != nil {
		// 错误会写入任务日志，不能带出 bot token
		return errors.New("failed to send telegram message: " + strings.ReplaceAll(err.Error(), s.botToken, "<redacted>"))
	}

	// 响应体不是 JSON 时按状态码判断
	var resp telegramResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		resp = telegramResponse{}
	}
	if !isSuccess(status) || !resp.OK {
		if resp.Description != "" {
			return fmt.Errorf("telegram api returned status %d: %s", status, resp.Description)
		}
		return fmt.Errorf("telegram api returned status %d", status)
	}
	return nil
}
