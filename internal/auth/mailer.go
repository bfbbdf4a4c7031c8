package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"

	"aicv-backend/internal/shared/telemetry"
	"aicv-backend/internal/shared/util"
)

// Mailer delivers one-time login codes by email.
type Mailer interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// NewMailer returns a Resend mailer, or a log-only mailer when apiKey is empty.
func NewMailer(apiKey, from string) Mailer {
	if apiKey == "" {
		return LogMailer{}
	}
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

type ResendMailer struct {
	client *resend.Client
	from   string
}

func (m *ResendMailer) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "您的验证码 / Your verification code",
		Html:    codeEmailHTML(code, ttl),
	})
	if err != nil {
		return err
	}
	telemetry.Info("mail.sent", map[string]any{"provider": "resend", "message_id": sent.Id})
	return nil
}

// LogMailer only logs that a code would have been sent.
type LogMailer struct{}

func (LogMailer) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	telemetry.Warn("mail.not_configured", map[string]any{"to": util.Fingerprint(to)})
	return nil
}

func codeEmailHTML(code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(`<p>您的验证码是：<strong>%s</strong>，%d分钟内有效</p><p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>`, code, minutes, code, minutes)
}
