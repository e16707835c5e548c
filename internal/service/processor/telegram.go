package processor

import (
	"context"
	"encoding/json"
	"strings"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/notification"
)

// TelegramConfig Telegram 任务配置
type TelegramConfig struct {
	ChatID    string `json:"chat_id"`
	Message   string `json:"message"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// ParseTelegramConfig 解析并校验 Telegram 配置
func ParseTelegramConfig(raw json.RawMessage) (*TelegramConfig, error) {
	var cfg TelegramConfig
	if err := decodeConfig(types.TaskTypeTelegram, raw, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, invalid(types.TaskTypeTelegram, "chat_id is required")
	}
	if strings.TrimSpace(cfg.Message) == "" {
		return nil, invalid(types.TaskTypeTelegram, "message is required")
	}
	switch cfg.ParseMode {
	case "", "HTML", "Markdown", "MarkdownV2":
	default:
		return nil, invalid(types.TaskTypeTelegram, "unsupported parse_mode %q", cfg.ParseMode)
	}
	return &cfg, nil
}

// TelegramProcessor Telegram 任务
type TelegramProcessor struct {
	sender TelegramDeliverer
}

func NewTelegramProcessor(sender TelegramDeliverer) *TelegramProcessor {
	return &TelegramProcessor{sender: sender}
}

func (p *TelegramProcessor) Type() types.TaskType {
	return types.TaskTypeTelegram
}

func (p *TelegramProcessor) Validate(config json.RawMessage) error {
	_, err := ParseTelegramConfig(config)
	return err
}

func (p *TelegramProcessor) Process(ctx context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	cfg, err := ParseTelegramConfig(json.RawMessage(task.Config))
	if err != nil {
		return nil, err
	}

	msg := &notification.TelegramMessage{
		ChatID:                strings.TrimSpace(cfg.ChatID),
		Text:                  Render(cfg.Message, ec),
		ParseMode:             cfg.ParseMode,
		DisableWebPagePreview: true,
	}

	result := &Result{Input: msg}
	if err := p.sender.SendMessage(ctx, msg); err != nil {
		return result, err
	}
	result.Output = DeliveryOutput{Delivered: true, Channel: string(types.TaskTypeTelegram)}
	return result, nil
}
