package mailing

import (
	"Fasting-Tracker/internal/utils"
	"fmt"
	"html"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"
)

type (
	MailConfig struct {
		AppURL       string
		SMTPHost     string
		SMTPPort     string
		SMTPSender   string
		SMTPEmail    string
		SMTPPassword string
	}

	Mailer interface {
		SendMail(toEmail string, subject string, body string) error
	}

	smtpMailer struct {
		cfg MailConfig
	}
)

func LoadMailConfig() MailConfig {
	return MailConfig{
		AppURL:       utils.GetConfig("APP_URL"),
		SMTPHost:     utils.GetConfig("SMTP_HOST"),
		SMTPPort:     utils.GetConfig("SMTP_PORT"),
		SMTPSender:   utils.GetConfig("SMTP_SENDER_NAME"),
		SMTPEmail:    utils.GetConfig("SMTP_AUTH_EMAIL"),
		SMTPPassword: utils.GetConfig("SMTP_AUTH_PASSWORD"),
	}
}

// NewMailer returns nil when SMTP is not configured.
func NewMailer(cfg MailConfig) Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) SendMail(toEmail string, subject string, body string) error {
	port, err := strconv.Atoi(m.cfg.SMTPPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT %q: %w", m.cfg.SMTPPort, err)
	}

	return gomail.NewDialer(m.cfg.SMTPHost, port, m.cfg.SMTPEmail, m.cfg.SMTPPassword).
		DialAndSend(buildMessage(m.cfg, toEmail, subject, body))
}

func buildMessage(cfg MailConfig, toEmail, subject, body string) *gomail.Message {
	mailer := gomail.NewMessage()
	if cfg.SMTPSender != "" {
		mailer.SetAddressHeader("From", cfg.SMTPEmail, cfg.SMTPSender)
	} else {
		mailer.SetHeader("From", cfg.SMTPEmail)
	}
	mailer.SetHeader("To", toEmail)
	mailer.SetHeader("Subject", subject)
	mailer.SetBody("text/html", body)
	return mailer
}

// DeletionReceipt renders the mail sent after an account is deleted.
func DeletionReceipt(userID string, deletedAt time.Time) (subject string, body string) {
	subject = "账户已删除 / Account deleted"
	body = fmt.Sprintf(
		"<p>你的轻断食账户 <b>%s</b> 及其全部断食与饮食记录已于 %s 删除。</p>"+
			"<p>Your fasting account and all of its records were deleted at %s.</p>",
		html.EscapeString(userID),
		deletedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		deletedAt.UTC().Format(time.RFC3339),
	)
	return subject, body
}
