// Package notify delivers notification emails.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/layer-3/signon/ports"
)

const (
	dialTimeout = 10 * time.Second
	// ioTimeout bounds a whole session when ctx carries no deadline
	ioTimeout = 30 * time.Second
)

// SMTPConfig describes the outgoing mail server
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	Encryption  string // "starttls" (default), "ssl" or "none"
}

// SMTPMailer sends plain-text mail over SMTP
type SMTPMailer struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.FromName == "" {
		cfg.FromName = "Signon"
	}
	if cfg.Encryption == "" {
		cfg.Encryption = "starttls"
	}
	return &SMTPMailer{cfg: cfg, now: time.Now}
}

var _ ports.Notifier = (*SMTPMailer)(nil)

// Send delivers one message to a single recipient
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	recipient, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	msg := m.buildMessage(from, recipient.Address, subject, body)
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))

	conn, err := m.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if m.cfg.Encryption == "starttls" {
		if err := client.StartTLS(m.tlsConfig()); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}
	return m.deliver(client, from.Address, recipient.Address, msg)
}

// buildMessage renders an RFC 5322 plain-text message
func (m *SMTPMailer) buildMessage(from mail.Address, to, subject, body string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return msg.String()
}

func (m *SMTPMailer) auth() gosmtp.Auth {
	if m.cfg.Username == "" {
		return nil
	}
	return gosmtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
}

// dial connects to addr and bounds every later read and write by the ctx
// deadline, or by ioTimeout when ctx has none
func (m *SMTPMailer) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(ioTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if m.cfg.Encryption == "ssl" {
		return tls.Client(conn, m.tlsConfig()), nil
	}
	return conn, nil
}

// deliver authenticates if configured and runs MAIL FROM, RCPT TO, DATA
func (m *SMTPMailer) deliver(client *gosmtp.Client, from, to, msg string) error {
	if auth := m.auth(); auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(v)
}
