package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/notification"
)

const SignatureHeader = "X-Hub-Signature-256"

// WebhookConfig webhook 任务配置，secret 可能是加密后的值
type WebhookConfig struct {
	URL     string `json:"url"`
	Secret  string `json:"secret,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebhookPayload webhook 请求体
type WebhookPayload struct {
	Workflow WorkflowRef        `json:"workflow"`
	Chain    ChainRef           `json:"chain"`
	User     UserRef            `json:"user"`
	Event    types.EventRawData `json:"event"`
	Message  string             `json:"message,omitempty"`
}

// ParseWebhookConfig 解析并校验 webhook 配置
func ParseWebhookConfig(raw json.RawMessage) (*WebhookConfig, error) {
	var cfg WebhookConfig
	if err := decodeConfig(types.TaskTypeWebhook, raw, &cfg); err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, invalid(types.TaskTypeWebhook, "url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid(types.TaskTypeWebhook, "url must be an absolute http(s) URL")
	}
	return &cfg, nil
}

// Sign 计算 HMAC-SHA256 签名头的值
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// WebhookProcessor webhook 任务
type WebhookProcessor struct {
	sender  WebhookDeliverer
	secrets SecretDecrypter
}

func NewWebhookProcessor(sender WebhookDeliverer, secrets SecretDecrypter) *WebhookProcessor {
	return &WebhookProcessor{sender: sender, secrets: secrets}
}

func (p *WebhookProcessor) Type() types.TaskType {
	return types.TaskTypeWebhook
}

func (p *WebhookProcessor) Validate(config json.RawMessage) error {
	_, err := ParseWebhookConfig(config)
	return err
}

// Build 构建 webhook 请求，配置了 secret 时附带签名头
func (p *WebhookProcessor) Build(cfg *WebhookConfig, ec *ExecutionContext) (*notification.WebhookMessage, error) {
	body, err := json.Marshal(WebhookPayload{
		Workflow: ec.Workflow,
		Chain:    ec.Chain,
		User:     ec.User,
		Event:    ec.Event,
		Message:  Render(cfg.Message, ec),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	msg := &notification.WebhookMessage{
		URL:     cfg.URL,
		Headers: map[string]string{},
		Body:    body,
	}

	secret := cfg.Secret
	if secret != "" && p.secrets != nil {
		if secret, err = p.secrets.Decrypt(secret); err != nil {
			return nil, fmt.Errorf("failed to decrypt webhook secret: %w", err)
		}
	}
	if secret != "" {
		msg.Headers[SignatureHeader] = Sign(secret, body)
	}
	return msg, nil
}

func (p *WebhookProcessor) Process(ctx context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	cfg, err := ParseWebhookConfig(json.RawMessage(task.Config))
	if err != nil {
		return nil, err
	}

	msg, err := p.Build(cfg, ec)
	if err != nil {
		return nil, err
	}

	result := &Result{Input: msg}
	if err := p.sender.Send(ctx, msg); err != nil {
		return result, err
	}
	result.Output = DeliveryOutput{Delivered: true, Channel: string(types.TaskTypeWebhook)}
	return result, nil
}
