package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"
)

// SMTPConfig holds SMTP server settings
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPSender delivers email through an SMTP relay using STARTTLS
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

// GetName returns the sender name
func (s *SMTPSender) GetName() string {
	return "smtp"
}

// Send renders and delivers the message
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	htmlBody, textBody, err := Render(msg.Template, msg.Context)
	if err != nil {
		return err
	}

	raw, err := s.buildMessage(msg, htmlBody, textBody)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendWithSTARTTLS(ctx, addr, auth, msg.To, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) sendWithSTARTTLS(ctx context.Context, addr string, auth smtp.Auth, to string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

// buildMessage produces a multipart/mixed message: an alternative text/html
// body followed by base64 attachments
func (s *SMTPSender) buildMessage(msg *Message, htmlBody, textBody string) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	header := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=%s\r\n\r\n",
		mime.QEncoding.Encode("utf-8", s.config.FromName)+" <"+s.config.FromAddress+">",
		msg.To,
		mime.QEncoding.Encode("utf-8", msg.Subject),
		time.Now().Format(time.RFC1123Z),
		mixed.Boundary(),
	)
	out := bytes.NewBufferString(header)

	// body: multipart/alternative nested inside the mixed part
	var altBuf bytes.Buffer
	alt := multipart.NewWriter(&altBuf)
	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", textBody},
		{"text/html; charset=UTF-8", htmlBody},
	} {
		w, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("failed to write body part: %w", err)
		}
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body: %w", err)
	}

	bodyPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message body: %w", err)
	}
	if _, err := bodyPart.Write(altBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}

	for _, attachment := range msg.Attachments {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Filename)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(attachment.Data)
		for len(encoded) > 76 {
			if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
				return nil, fmt.Errorf("failed to write attachment: %w", err)
			}
			encoded = encoded[76:]
		}
		if _, err := w.Write([]byte(encoded + "\r\n")); err != nil {
			return nil, fmt.Errorf("failed to write attachment: %w", err)
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}
