// Package notify provides the notification collaborators invoked by the
// scheduled reminder jobs.
//
// Sends are fire-and-forget: a failure is logged and reported in the job
// summary, never retried. Actual SMS delivery happens outside this system;
// SMSSender is the seam it plugs into.
package notify

import (
	"context"

	"github.com/darasahq/darasa/internal/domain"
)

// =============================================================================
// Interface Definitions
// =============================================================================

// Notifier sends subscription lifecycle notifications to a school.
type Notifier interface {
	// SendRenewalReminder tells a school its subscription expires in
	// daysLeft days (7, 3, or 1).
	SendRenewalReminder(ctx context.Context, school domain.School, daysLeft int) error

	// SendGraceNotice tells a school its subscription expired today and the
	// grace window has started.
	SendGraceNotice(ctx context.Context, school domain.School) error

	// SendFinalNotice tells a school its grace window ends in daysLeft days
	// and the account will be downgraded.
	SendFinalNotice(ctx context.Context, school domain.School, daysLeft int) error

	// SendReferralCreditNotice tells a referrer they earned months of
	// subscription time from a converted referral.
	SendReferralCreditNotice(ctx context.Context, school domain.School, months int) error
}

// SMSSender delivers a single SMS message. Delivery itself is out of
// scope; implementations hand the message to an external gateway.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// Common defaults for transactional email.
const (
	DefaultFromEmail = "noreply@darasa.app"
	DefaultFromName  = "Darasa"
)
