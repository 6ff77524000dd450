// Package notify sends operational email: password reset links and
// password expiry warnings.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"vibedb/internal/config"
)

// Notifier delivers messages to users.
type Notifier interface {
	// SendPasswordReset delivers a reset link built from the plaintext
	// token. The token is never logged.
	SendPasswordReset(ctx context.Context, email, username, token string) error

	// SendExpiryWarning warns a user their password expires in the given
	// number of days.
	SendExpiryWarning(ctx context.Context, email, username string, daysLeft int) error
}

// SMTPNotifier delivers mail over plain SMTP.
type SMTPNotifier struct {
	cfg config.NotifierConfig
	log *slog.Logger
}

// NewSMTP creates an SMTP notifier.
func NewSMTP(cfg config.NotifierConfig, log *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, log: log}
}

// Configured reports whether outbound mail is set up.
func (n *SMTPNotifier) Configured() bool {
	return n.cfg.SMTPAddr != "" && n.cfg.From != ""
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	if !n.Configured() {
		n.log.Warn("mail not configured, dropping message", "to", to, "subject", subject)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(n.cfg.SMTPAddr, nil, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// SendPasswordReset implements Notifier.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, username, token string) error {
	resetURL := n.cfg.ResetURLBase
	if resetURL != "" && !strings.HasSuffix(resetURL, "=") && !strings.HasSuffix(resetURL, "/") {
		resetURL += "?token="
	}
	resetURL += token

	body := fmt.Sprintf(`Hello %s,

A password reset was requested for your account. Use the link below to set
a new password. The link expires in 24 hours and can be used once.

%s

If you did not request this, you can ignore this message.
`, username, resetURL)

	if err := n.send(email, "Password reset request", body); err != nil {
		return err
	}
	n.log.Info("sent password reset mail", "email", email)
	return nil
}

// SendExpiryWarning implements Notifier.
func (n *SMTPNotifier) SendExpiryWarning(ctx context.Context, email, username string, daysLeft int) error {
	day := "days"
	if daysLeft == 1 {
		day = "day"
	}
	body := fmt.Sprintf(`Hello %s,

Your password expires in %d %s. Please change it before then to keep
uninterrupted access.
`, username, daysLeft, day)

	subject := fmt.Sprintf("Your password expires in %d %s", daysLeft, day)
	if err := n.send(email, subject, body); err != nil {
		return err
	}
	n.log.Info("sent password expiry warning", "email", email, "days_left", daysLeft)
	return nil
}
