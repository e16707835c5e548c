package notification

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

var ErrSMTPNotConfigured = errors.New("smtp host not configured")

// EmailMessage 邮件内容
type EmailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html"`
}

// SMTPSettings SMTP连接参数
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender SMTP邮件发送器
type EmailSender struct {
	settings SMTPSettings
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender 创建邮件发送器
func NewEmailSender(settings SMTPSettings) *EmailSender {
	return &EmailSender{settings: settings, sendMail: smtp.SendMail}
}

// Send 发送邮件；smtp.SendMail 不支持 context，仅在发送前检查取消
func (s *EmailSender) Send(ctx context.Context, msg *EmailMessage) error {
	if s.settings.Host == "" {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
	}

	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))
	if err := s.sendMail(addr, auth, s.settings.From, msg.To, BuildMIME(s.settings.From, msg, time.Now())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// BuildMIME 构造 RFC 5322 邮件文本
func BuildMIME(from string, msg *EmailMessage, now time.Time) []byte {
	contentType := "text/plain; charset=UTF-8"
	if msg.HTML {
		contentType = "text/html; charset=UTF-8"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
