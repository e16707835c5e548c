package processor

import (
	"context"

	"chainflow-backend/pkg/notification"
)

// WebhookDeliverer webhook 投递
type WebhookDeliverer interface {
	Send(ctx context.Context, msg *notification.WebhookMessage) error
}

// EmailDeliverer 邮件投递
type EmailDeliverer interface {
	Send(ctx context.Context, msg *notification.EmailMessage) error
}

// TelegramDeliverer Telegram 投递
type TelegramDeliverer interface {
	SendMessage(ctx context.Context, msg *notification.TelegramMessage) error
}

// DiscordDeliverer Discord 投递
type DiscordDeliverer interface {
	SendMessage(ctx context.Context, msg *notification.DiscordMessage) error
}

// SecretDecrypter 解密静态存储的密钥
type SecretDecrypter interface {
	Decrypt(value string) (string, error)
}

// DeliveryOutput 通知类任务的输出
type DeliveryOutput struct {
	Delivered bool   `json:"delivered"`
	Channel   string `json:"channel"`
}
