// Package email delivers engagement alerts to agents over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"swipelink_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Sender is the outbound alert surface the notification module depends on.
type Sender interface {
	SendHotLeadAlert(ctx context.Context, toEmail, clientName, dealID string, score int) error
}

// SMTPSender delivers alerts via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSender builds a sender from config, or nil when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return nil, nil
	}
	if cfg.GetSMTPHost() == "" || cfg.GetEmailFromAddress() == "" {
		return nil, fmt.Errorf("email enabled but SMTP host or from address missing")
	}

	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}, nil
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendHotLeadAlert notifies the agent inbox that a deal went hot.
func (s *SMTPSender) SendHotLeadAlert(ctx context.Context, toEmail, clientName, dealID string, score int) error {
	if clientName == "" {
		clientName = "A client"
	}

	content, err := renderHotLead(hotLeadData{
		ClientName: clientName,
		Score:      score,
		DealID:     dealID,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectHotLeadFmt, clientName), content)
}
