package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/darasahq/darasa/internal/domain"
)

// =============================================================================
// SMTP Notifier Implementation
// =============================================================================

// SMTPNotifier sends lifecycle emails via SMTP.
//
// Works with Mailhog in development (no authentication) and any standard
// SMTP relay in production. Bodies are rendered from inline templates with
// html/template.
type SMTPNotifier struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPNotifier creates a new SMTP-based notifier. baseURL is the
// application's public URL, used for renewal links.
func NewSMTPNotifier(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPNotifier, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("notify").Parse(lifecycleTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}

	return &SMTPNotifier{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// =============================================================================
// Notifier Interface Implementation
// =============================================================================

// SendRenewalReminder tells a school its subscription expires in daysLeft days.
func (s *SMTPNotifier) SendRenewalReminder(ctx context.Context, school domain.School, daysLeft int) error {
	data := s.templateData(school)
	data["DaysLeft"] = daysLeft

	htmlBody, err := s.renderTemplate("renewal_reminder", data)
	if err != nil {
		return fmt.Errorf("failed to render renewal reminder: %w", err)
	}

	textBody := fmt.Sprintf(`Hello %s,

Your %s subscription expires in %d day(s). Renew now to keep your SMS and storage allowances:

%s/billing

Thanks,
The Darasa Team
`, school.Name, school.Tier, daysLeft, s.baseURL)

	return s.send(ctx, Email{
		To:       school.Email,
		Subject:  fmt.Sprintf("Your Darasa subscription expires in %d day(s)", daysLeft),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendGraceNotice tells a school its subscription expired today.
func (s *SMTPNotifier) SendGraceNotice(ctx context.Context, school domain.School) error {
	data := s.templateData(school)

	htmlBody, err := s.renderTemplate("grace_notice", data)
	if err != nil {
		return fmt.Errorf("failed to render grace notice: %w", err)
	}

	textBody := fmt.Sprintf(`Hello %s,

Your %s subscription expired today. Your account keeps full access for 3 more days, after which it will move to the free plan.

Renew here: %s/billing

Thanks,
The Darasa Team
`, school.Name, school.Tier, s.baseURL)

	return s.send(ctx, Email{
		To:       school.Email,
		Subject:  "Your Darasa subscription has expired",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendFinalNotice tells a school its grace window ends in daysLeft days.
func (s *SMTPNotifier) SendFinalNotice(ctx context.Context, school domain.School, daysLeft int) error {
	data := s.templateData(school)
	data["DaysLeft"] = daysLeft

	htmlBody, err := s.renderTemplate("final_notice", data)
	if err != nil {
		return fmt.Errorf("failed to render final notice: %w", err)
	}

	textBody := fmt.Sprintf(`Hello %s,

This is the final reminder: your grace period ends in %d day(s). After that your account moves to the free plan and paid features stop working.

Renew here: %s/billing

Thanks,
The Darasa Team
`, school.Name, daysLeft, s.baseURL)

	return s.send(ctx, Email{
		To:       school.Email,
		Subject:  "Final notice: your Darasa account will be downgraded",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendReferralCreditNotice tells a referrer they earned free subscription time.
func (s *SMTPNotifier) SendReferralCreditNotice(ctx context.Context, school domain.School, months int) error {
	data := s.templateData(school)
	data["Months"] = months

	htmlBody, err := s.renderTemplate("referral_credit", data)
	if err != nil {
		return fmt.Errorf("failed to render referral credit notice: %w", err)
	}

	textBody := fmt.Sprintf(`Hello %s,

Great news! A school you referred just made its first payment, and we've added %d month(s) to your subscription.

Keep sharing your referral code to earn more free time.

Thanks,
The Darasa Team
`, school.Name, months)

	return s.send(ctx, Email{
		To:       school.Email,
		Subject:  "You earned free Darasa subscription time",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *SMTPNotifier) templateData(school domain.School) map[string]interface{} {
	return map[string]interface{}{
		"Name":    school.Name,
		"Tier":    string(school.Tier),
		"BaseURL": s.baseURL,
		"Year":    time.Now().Year(),
	}
}

// send sends an email via SMTP.
func (s *SMTPNotifier) send(_ context.Context, email Email) error {
	msg := s.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Auth only when credentials are configured (Mailhog needs none)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPNotifier) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============DARASA_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders a named inline template with the given data.
func (s *SMTPNotifier) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// lifecycleTemplates holds the inline HTML bodies for lifecycle emails.
const lifecycleTemplates = `
{{define "renewal_reminder"}}
<p>Hello {{.Name}},</p>
<p>Your <strong>{{.Tier}}</strong> subscription expires in <strong>{{.DaysLeft}} day(s)</strong>.
Renew now to keep your SMS and storage allowances.</p>
<p><a href="{{.BaseURL}}/billing">Renew your subscription</a></p>
<p>Thanks,<br>The Darasa Team</p>
{{end}}

{{define "grace_notice"}}
<p>Hello {{.Name}},</p>
<p>Your <strong>{{.Tier}}</strong> subscription expired today. Your account keeps full
access for 3 more days, after which it will move to the free plan.</p>
<p><a href="{{.BaseURL}}/billing">Renew your subscription</a></p>
<p>Thanks,<br>The Darasa Team</p>
{{end}}

{{define "final_notice"}}
<p>Hello {{.Name}},</p>
<p>This is the final reminder: your grace period ends in <strong>{{.DaysLeft}} day(s)</strong>.
After that your account moves to the free plan and paid features stop working.</p>
<p><a href="{{.BaseURL}}/billing">Renew your subscription</a></p>
<p>Thanks,<br>The Darasa Team</p>
{{end}}

{{define "referral_credit"}}
<p>Hello {{.Name}},</p>
<p>Great news! A school you referred just made its first payment, and we've added
<strong>{{.Months}} month(s)</strong> to your subscription.</p>
<p>Keep sharing your referral code to earn more free time.</p>
<p>Thanks,<br>The Darasa Team</p>
{{end}}
`

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ Notifier = (*SMTPNotifier)(nil)
