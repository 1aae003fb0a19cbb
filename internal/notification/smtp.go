package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// SMTPSender sends requests as email, attaching the QR code when present
type SMTPSender struct {
	addr string
	host string
	auth smtp.Auth
	from string
	log  *log.Logger
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	s := &SMTPSender{
		addr: net.JoinHostPort(cfg.Mail.Host, cfg.Mail.Port),
		host: cfg.Mail.Host,
		from: cfg.Mail.From,
		log:  logger.Notification("smtp"),
	}
	if cfg.Mail.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.Host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(s.from, req, time.Now())
	if err != nil {
		return err
	}

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{req.Recipient}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", req.Recipient, err)
	}
	s.log.Debug("Email sent", "recipient", req.Recipient, "kind", req.Kind)
	return nil
}

func buildMessage(from string, req Request, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", req.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(req)))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(Body(req))); err != nil {
		return nil, err
	}

	if len(req.QRCode) > 0 {
		img, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {`attachment; filename="qrcode.png"`},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, &lineWriter{w: img})
		if _, err := enc.Write(req.QRCode); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lineWriter breaks base64 output into 76 character lines
type lineWriter struct {
	w   io.Writer
	col int
}

func (l *lineWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(76-l.col, len(p))
		if _, err := l.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		l.col += n
		p = p[n:]
		if l.col == 76 {
			if _, err := l.w.Write([]byte("\r\n")); err != nil {
				return written, err
			}
			l.col = 0
		}
	}
	return written, nil
}

// LogSender writes requests to the log instead of sending them
type LogSender struct {
	log *log.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.Notification("log")}
}

func (s *LogSender) Send(ctx context.Context, req Request) error {
	s.log.Info("Notification",
		"kind", req.Kind,
		"recipient", req.Recipient,
		"subject", Subject(req),
		"link", req.Link,
		"items", len(req.Items),
		"qr_bytes", len(req.QRCode),
	)
	return nil
}

// SenderFromConfig uses SMTP when a mail host is configured
func SenderFromConfig(cfg *config.Config) Sender {
	if cfg.Mail.Host == "" {
		logger.Notification("log").Warn("SMTP_HOST not set, notifications are only logged")
		return NewLogSender()
	}
	return NewSMTPSender(cfg)
}
