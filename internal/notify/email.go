package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const defaultFromName = "AfiyaLink Alerts"

// EmailSender delivers one email. SendGrid, SES and a logging stub implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one alert email. Category tags the message at the
// provider so on-call mail can be filtered; Urgent marks it high priority.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	HTML     string
	Category string
	Urgent   bool
}

// sender carries the From identity shared by the provider senders.
type sender struct {
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

func newSender(fromEmail, fromName string, logger *logging.Logger) sender {
	if logger == nil {
		logger = logging.Default()
	}
	if fromName == "" {
		fromName = defaultFromName
	}
	return sender{fromEmail: fromEmail, fromName: fromName, logger: logger}
}

func (s sender) from() string {
	return fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends alert emails through the SendGrid v3 API.
type SendGridSender struct {
	sender
	client *sendgrid.Client
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return &SendGridSender{
		sender: newSender(cfg.FromEmail, cfg.FromName, logger),
		client: sendgrid.NewSendClient(cfg.APIKey),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		html,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}
	if msg.Urgent {
		message.SetHeader("X-Priority", "1")
		message.SetHeader("Importance", "high")
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected alert", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("alert email sent", "provider", "sendgrid", "to", msg.To, "category", msg.Category)
	return nil
}

// StubEmailSender only logs. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Warn("no email provider configured, alert email dropped", "to", msg.To, "subject", msg.Subject, "category", msg.Category)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
