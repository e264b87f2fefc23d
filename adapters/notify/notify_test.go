package notify

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts one session and forwards the DATA body
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(line); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "DATA"):
				_ = tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				received <- strings.Join(lines, "\n")
				_ = tp.PrintfLine("250 queued")
			case strings.HasPrefix(cmd, "QUIT"):
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("250 OK")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, received
}

func TestSMTPMailer_SendPlain(t *testing.T) {
	host, port, received := fakeSMTP(t)
	m := NewSMTPMailer(SMTPConfig{
		Host:        host,
		Port:        port,
		FromAddress: "noreply@example.com",
		Encryption:  "none",
	})

	require.NoError(t, m.Send(context.Background(), "user@example.com", "Welcome", "line one\nline two"))

	select {
	case body := <-received:
		assert.Contains(t, body, "To: user@example.com")
		assert.Contains(t, body, "Subject: Welcome")
		assert.Contains(t, body, `From: "Signon" <noreply@example.com>`)
		assert.Contains(t, body, "line one")
		assert.Contains(t, body, "line two")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPMailer_StalledServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept and never send the greeting
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewSMTPMailer(SMTPConfig{Host: host, Port: port, FromAddress: "noreply@example.com", Encryption: "none"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Send(ctx, "user@example.com", "Welcome", "hi")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSMTPMailer_RejectsBadRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", FromAddress: "noreply@example.com"})
	assert.Error(t, m.Send(context.Background(), "not an address", "s", "b"))
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{FromAddress: "noreply@example.com", FromName: "Team"})
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	msg := m.buildMessage(mail.Address{Name: "Team", Address: "noreply@example.com"},
		"user@example.com", "Hi\r\nBcc: evil@example.com", "body")

	assert.Contains(t, msg, "Subject: Hi Bcc: evil@example.com\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
	assert.Contains(t, msg, "Date: Tue, 02 Jan 2024 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nbody"))
}

func TestSMTPMailer_Defaults(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"})
	assert.Equal(t, 587, m.cfg.Port)
	assert.Equal(t, "starttls", m.cfg.Encryption)
	assert.Equal(t, "Signon", m.cfg.FromName)
	assert.Nil(t, m.auth())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Send(context.Background(), "user@example.com", "Welcome", "hello"))
	assert.Contains(t, buf.String(), `"to":"user@example.com"`)
	assert.Contains(t, buf.String(), `"subject":"Welcome"`)
	assert.NotContains(t, buf.String(), "hello")
}
