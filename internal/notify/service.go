package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const (
	alertKindEmergency = "emergency_alert"
	maxQueryExcerpt    = 280
)

// EmergencyAlert describes a request that took the emergency path.
type EmergencyAlert struct {
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	Warnings   []string  `json:"warnings,omitempty"`
	Region     string    `json:"region,omitempty"`
	Language   string    `json:"language,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// AlertService fans an emergency alert out to the on-call email list and
// the alert queue. Either channel may be absent.
type AlertService struct {
	email      EmailSender
	recipients []string
	queue      Publisher
	logger     *logging.Logger
}

// NewAlertService creates an alert service. A nil email sender or an empty
// recipient list disables email; a nil queue disables publishing.
func NewAlertService(email EmailSender, recipients []string, queue Publisher, logger *logging.Logger) *AlertService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AlertService{
		email:      email,
		recipients: recipients,
		queue:      queue,
		logger:     logger,
	}
}

// NotifyEmergency delivers the alert on every configured channel. All
// channels are attempted; failures are joined.
func (s *AlertService) NotifyEmergency(ctx context.Context, alert EmergencyAlert) error {
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}
	alert.Query = excerpt(alert.Query)

	var errs []error
	if s.email != nil && len(s.recipients) > 0 {
		msg := buildAlertEmail(alert)
		for _, to := range s.recipients {
			msg.To = to
			if err := s.email.Send(ctx, msg); err != nil {
				errs = append(errs, fmt.Errorf("notify: email %s: %w", to, err))
			}
		}
	}

	if s.queue != nil {
		payload, err := json.Marshal(alert)
		if err != nil {
			errs = append(errs, fmt.Errorf("notify: marshal alert: %w", err))
		} else if err := s.queue.Publish(ctx, alertKindEmergency, string(payload)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		s.logger.Error("emergency alert delivery incomplete", "request_id", alert.RequestID, "failures", len(errs))
		return errors.Join(errs...)
	}
	s.logger.Info("emergency alert dispatched", "request_id", alert.RequestID, "recipients", len(s.recipients), "queued", s.queue != nil)
	return nil
}

func buildAlertEmail(alert EmergencyAlert) EmailMessage {
	var body strings.Builder
	body.WriteString("A medical emergency was detected by the AfiyaLink assistant.\n\n")
	fmt.Fprintf(&body, "Request: %s\n", alert.RequestID)
	fmt.Fprintf(&body, "User: %s\n", alert.UserID)
	fmt.Fprintf(&body, "Detected: %s\n", alert.DetectedAt.Format(time.RFC1123))
	if alert.Region != "" {
		fmt.Fprintf(&body, "Region: %s\n", alert.Region)
	}
	if len(alert.Warnings) > 0 {
		fmt.Fprintf(&body, "Signals: %s\n", strings.Join(alert.Warnings, "; "))
	}
	fmt.Fprintf(&body, "\nMessage:\n%s\n", alert.Query)
	body.WriteString("\nThe user was shown emergency numbers and first-aid guidance. Follow up per the on-call runbook.")

	return EmailMessage{
		Subject:  fmt.Sprintf("[AfiyaLink] Emergency detected (%s)", alert.RequestID),
		Body:     body.String(),
		Category: alertKindEmergency,
		Urgent:   true,
	}
}

func excerpt(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxQueryExcerpt {
		return string(r)
	}
	return string(r[:maxQueryExcerpt]) + "…"
}
