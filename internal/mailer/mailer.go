package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

const appName = "URL Shortener"

//go:embed templates/*.html
var templateFS embed.FS

var otpTemplate = template.Must(template.ParseFS(templateFS, "templates/otp.html"))

//go:generate mockgen -destination=../mocks/mailer_mock.go -package=mocks url-shortener/internal/mailer Mailer

// Mailer delivers account emails.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error
}

type otpData struct {
	AppName string
	Name    string
	Code    string
	Minutes int
}

// RenderOTP renders the password reset email body.
func RenderOTP(name, code string, ttl time.Duration) (string, error) {
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, otpData{AppName: appName, Name: name, Code: code, Minutes: minutes})
	if err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := RenderOTP(name, code, ttl)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	m.log.Info().Str("to", to).Msg("otp email sent")
	return nil
}

// LogMailer writes emails to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error {
	m.log.Info().Str("to", to).Dur("ttl", ttl).Msg("smtp not configured, otp email not sent")
	m.log.Debug().Str("to", to).Str("code", code).Msg("otp code")
	return nil
}
