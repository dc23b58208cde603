package internal

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"github.com/DrGermanius/withdraw/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

var resultTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

var resultViews = map[model.TemplateKind]struct {
	subject  string
	template string
}{
	model.TemplateSuccess: {subject: "PIX withdrawal completed", template: "withdraw_succeeded.html"},
	model.TemplateFailure: {subject: "PIX withdrawal failed", template: "withdraw_failed.html"},
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer   dialer
	from     string
	fromName string
}

func NewSMTPMailer(cfg *Config) *SMTPMailer {
	d := gomail.NewDialer(cfg.MailHost, cfg.MailPort, cfg.MailUsername, cfg.MailPassword)
	d.SSL = cfg.MailPort == 465

	return &SMTPMailer{dialer: d, from: cfg.MailFromAddress, fromName: cfg.MailFromName}
}

func (m *SMTPMailer) SendResult(ctx context.Context, to string, kind model.TemplateKind, mail model.ResultMail) error {
	subject, body, err := RenderResult(kind, mail)
	if err != nil {
		return err
	}

	// gomail has no context support; at least do not dial for an abandoned notification
	if err = ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err = m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending mail: %w", err)
	}
	return nil
}

// RenderResult returns the subject and HTML body for a withdrawal result email.
func RenderResult(kind model.TemplateKind, mail model.ResultMail) (string, string, error) {
	view, ok := resultViews[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown template kind %q", kind)
	}

	code := string(mail.ErrorCode)
	if code == "" {
		code = "UNKNOWN"
	}

	var buf bytes.Buffer
	err := resultTemplates.ExecuteTemplate(&buf, view.template, map[string]string{
		"AccountID":    mail.AccountID.String(),
		"Amount":       FormatAmount(mail.Amount),
		"WithdrawalID": mail.WithdrawalID.String(),
		"ErrorCode":    code,
	})
	if err != nil {
		return "", "", fmt.Errorf("error rendering %s: %w", view.template, err)
	}
	return view.subject, buf.String(), nil
}

// FormatAmount renders money in pt-BR notation: 1234.5 -> "1.234,50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "," + frac
}
