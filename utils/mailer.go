package utils

import (
	"fmt"
	"log"

	"timecapsule/config"

	"gopkg.in/gomail.v2"
)

// Mailer sends best-effort transactional emails. When SMTP is not
// configured every send is a logged no-op, so handlers and the unlock
// worker never fail on mail problems.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *log.Logger
}

func NewMailer(cfg config.SMTPConfig, logger *log.Logger) *Mailer {
	m := &Mailer{from: cfg.FromEmail, logger: logger}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

func (m *Mailer) send(to, subject, body string) {
	if m.dialer == nil {
		m.logger.Printf("SMTP disabled, skipping email %q to %s", subject, to)
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Printf("failed to send email %q to %s: %v", subject, to, err)
	}
}

func (m *Mailer) SendCapsuleUnlocked(to, capsuleTitle, capsuleID string) {
	url := fmt.Sprintf("%s/capsules/%s", config.AppConfig.BaseURL, capsuleID)
	m.send(to,
		fmt.Sprintf("Your capsule %q is now unlocked", capsuleTitle),
		fmt.Sprintf("The time has come. Your capsule %q has unlocked and its contents are ready: %s", capsuleTitle, url),
	)
}

func (m *Mailer) SendCollaboratorInvite(to, inviterName, capsuleTitle string) {
	m.send(to,
		fmt.Sprintf("%s invited you to a time capsule", inviterName),
		fmt.Sprintf("%s added you as a collaborator on the capsule %q. Sign in to view it: %s", inviterName, capsuleTitle, config.AppConfig.BaseURL),
	)
}
