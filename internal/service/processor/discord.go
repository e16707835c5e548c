package processor

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/notification"
)

const discordEmbedColor = 0xE6007A

// DiscordConfig Discord 任务配置
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message"`
}

// ParseDiscordConfig 解析并校验 Discord 配置
func ParseDiscordConfig(raw json.RawMessage) (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := decodeConfig(types.TaskTypeDiscord, raw, &cfg); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(cfg.WebhookURL))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, invalid(types.TaskTypeDiscord, "webhook_url must be an https URL")
	}
	if strings.TrimSpace(cfg.Message) == "" {
		return nil, invalid(types.TaskTypeDiscord, "message is required")
	}
	return &cfg, nil
}

// DiscordProcessor Discord 任务
type DiscordProcessor struct {
	sender DiscordDeliverer
}

func NewDiscordProcessor(sender DiscordDeliverer) *DiscordProcessor {
	return &DiscordProcessor{sender: sender}
}

func (p *DiscordProcessor) Type() types.TaskType {
	return types.TaskTypeDiscord
}

func (p *DiscordProcessor) Validate(config json.RawMessage) error {
	_, err := ParseDiscordConfig(config)
	return err
}

func (p *DiscordProcessor) Process(ctx context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	cfg, err := ParseDiscordConfig(json.RawMessage(task.Config))
	if err != nil {
		return nil, err
	}

	msg := &notification.DiscordMessage{
		WebhookURL: strings.TrimSpace(cfg.WebhookURL),
		Username:   "Chainflow",
		Embeds: []notification.DiscordEmbed{{
			Title:       Render(cfg.Title, ec),
			Description: Render(cfg.Message, ec),
			Color:       discordEmbedColor,
		}},
	}

	result := &Result{Input: msg}
	if err := p.sender.SendMessage(ctx, msg); err != nil {
		return result, err
	}
	result.Output = DeliveryOutput{Delivered: true, Channel: string(types.TaskTypeDiscord)}
	return result, nil
}
