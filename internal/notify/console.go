package notify

import (
	"context"
	"log/slog"

	"github.com/darasahq/darasa/internal/domain"
)

// ConsoleNotifier logs notifications instead of sending them. Used in
// development and as the fallback when SMTP is not configured.
type ConsoleNotifier struct {
	logger *slog.Logger
}

// NewConsoleNotifier creates a logging-only notifier.
func NewConsoleNotifier(logger *slog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (c *ConsoleNotifier) SendRenewalReminder(_ context.Context, school domain.School, daysLeft int) error {
	c.logger.Info("renewal reminder", "school", school.Name, "email", school.Email, "days_left", daysLeft)
	return nil
}

func (c *ConsoleNotifier) SendGraceNotice(_ context.Context, school domain.School) error {
	c.logger.Info("grace notice", "school", school.Name, "email", school.Email)
	return nil
}

func (c *ConsoleNotifier) SendFinalNotice(_ context.Context, school domain.School, daysLeft int) error {
	c.logger.Info("final notice", "school", school.Name, "email", school.Email, "days_left", daysLeft)
	return nil
}

func (c *ConsoleNotifier) SendReferralCreditNotice(_ context.Context, school domain.School, months int) error {
	c.logger.Info("referral credit notice", "school", school.Name, "email", school.Email, "months", months)
	return nil
}

var _ Notifier = (*ConsoleNotifier)(nil)

// LogSMSSender is an SMSSender that only logs. Real delivery is handled by
// an external gateway integration outside this system.
type LogSMSSender struct {
	logger *slog.Logger
}

// NewLogSMSSender creates a logging-only SMS sender.
func NewLogSMSSender(logger *slog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

func (l *LogSMSSender) Send(_ context.Context, to, message string) error {
	l.logger.Info("sms queued", "to", to, "length", len(message))
	return nil
}

var _ SMSSender = (*LogSMSSender)(nil)
