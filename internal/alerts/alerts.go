// Package alerts delivers failure notifications to Slack and email.
//
// Delivery problems are logged by the caller and never fail a run.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"testctl/internal/config"
	"testctl/pkg/logging"
)

// Notifier sends one alert.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Nop discards alerts.
type Nop struct{}

func (Nop) Notify(ctx context.Context, subject, message string) error { return nil }

// SlackNotifier posts to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for webhookURL. A nil client gets a
// 10s timeout.
func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{webhookURL: webhookURL, client: client}
}

func (s *SlackNotifier) Notify(ctx context.Context, subject, message string) error {
	payload, err := json.Marshal(map[string]string{"text": fmt.Sprintf("*%s*\n%s", subject, message)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %s", resp.Status)
	}
	return nil
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends plain-text mail over SMTP.
type EmailNotifier struct {
	cfg      config.EmailConfig
	sendMail sendMailFunc
}

// NewEmailNotifier creates a notifier from cfg.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *EmailNotifier) Notify(ctx context.Context, subject, message string) error {
	addr := e.cfg.SMTPServer + ":" + strconv.Itoa(e.cfg.SMTPPort)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPServer)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(message)

	if err := e.sendMail(addr, auth, e.cfg.Sender, []string{e.cfg.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subject, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throttled drops an alert identical to one sent within the window.
type Throttled struct {
	next Notifier
	seen *cache.Cache
}

// NewThrottled wraps next.
func NewThrottled(next Notifier, window time.Duration) *Throttled {
	return &Throttled{next: next, seen: cache.New(window, 2*window)}
}

func (t *Throttled) Notify(ctx context.Context, subject, message string) error {
	// Add fails while an unexpired entry exists.
	if err := t.seen.Add(subject+"\x00"+message, struct{}{}, cache.DefaultExpiration); err != nil {
		logging.Debug("Alerts", "Dropping repeated alert %q", subject)
		return nil
	}
	return t.next.Notify(ctx, subject, message)
}

// FromConfig builds the notifier for every configured channel. With none
// configured it returns Nop.
func FromConfig(cfg config.AlertsConfig) Notifier {
	var m Multi
	if cfg.SlackWebhookURL != "" {
		m = append(m, NewSlackNotifier(cfg.SlackWebhookURL, nil))
	}
	if cfg.Email.Configured() {
		m = append(m, NewEmailNotifier(cfg.Email))
	}
	if len(m) == 0 {
		logging.Debug("Alerts", "No alert channels configured")
		return Nop{}
	}

	var n Notifier = m
	if len(m) == 1 {
		n = m[0]
	}
	if cfg.ThrottleSeconds > 0 {
		n = NewThrottled(n, time.Duration(cfg.ThrottleSeconds)*time.Second)
	}
	return n
}

// Send notifies and logs any delivery failure.
func Send(ctx context.Context, n Notifier, subject, message string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, subject, message); err != nil {
		logging.Error("Alerts", err, "Failed to deliver alert %q", subject)
	}
}
