package processor

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/notification"
)

// EmailConfig 邮件任务配置
type EmailConfig struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html,omitempty"`
}

// ParseEmailConfig 解析并校验邮件配置
func ParseEmailConfig(raw json.RawMessage) (*EmailConfig, error) {
	var cfg EmailConfig
	if err := decodeConfig(types.TaskTypeEmail, raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.To) == 0 {
		return nil, invalid(types.TaskTypeEmail, "at least one recipient is required")
	}
	for _, to := range cfg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return nil, invalid(types.TaskTypeEmail, "invalid recipient %q", to)
		}
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, invalid(types.TaskTypeEmail, "subject is required")
	}
	if strings.TrimSpace(cfg.Body) == "" {
		return nil, invalid(types.TaskTypeEmail, "body is required")
	}
	return &cfg, nil
}

// EmailProcessor 邮件任务
type EmailProcessor struct {
	sender EmailDeliverer
}

func NewEmailProcessor(sender EmailDeliverer) *EmailProcessor {
	return &EmailProcessor{sender: sender}
}

func (p *EmailProcessor) Type() types.TaskType {
	return types.TaskTypeEmail
}

func (p *EmailProcessor) Validate(config json.RawMessage) error {
	_, err := ParseEmailConfig(config)
	return err
}

// Build 渲染主题与正文，主题中的换行会被去掉
func (p *EmailProcessor) Build(cfg *EmailConfig, ec *ExecutionContext) *notification.EmailMessage {
	subject := strings.NewReplacer("\r", " ", "\n", " ").Replace(Render(cfg.Subject, ec))
	return &notification.EmailMessage{
		To:      append([]string(nil), cfg.To...),
		Subject: strings.TrimSpace(subject),
		Body:    Render(cfg.Body, ec),
		HTML:    cfg.HTML,
	}
}

func (p *EmailProcessor) Process(ctx context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	cfg, err := ParseEmailConfig(json.RawMessage(task.Config))
	if err != nil {
		return nil, err
	}

	msg := p.Build(cfg, ec)
	result := &Result{Input: msg}
	if err := p.sender.Send(ctx, msg); err != nil {
		return result, err
	}
	result.Output = DeliveryOutput{Delivered: true, Channel: string(types.TaskTypeEmail)}
	return result, nil
}
