// Package notify sends install alerts and campaign status notices.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"pausee/internal/config"
	"pausee/internal/engine"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type message struct {
	title *template.Template
	body  *template.Template
}

// Mailer sends notices over SMTP.
type Mailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	to     []string
	alert  message
	mutate message
	send   sendFunc
}

type alertData struct {
	Installs        int
	LookbackMinutes int
}

type mutateData struct {
	Status       engine.Status
	Succeeded    []string
	Failed       []string
	SucceededIDs []string
	FailedIDs    []string
}

var funcs = template.FuncMap{"join": strings.Join}

func NewMailer(cfg config.Config) (*Mailer, error) {
	e := cfg.Email
	if len(e.To) == 0 {
		return nil, fmt.Errorf("email.to must list at least one recipient")
	}
	alert, err := parseMessage("alert", e.Messages.Alert)
	if err != nil {
		return nil, err
	}
	mutate, err := parseMessage("mutate", e.Messages.Mutate)
	if err != nil {
		return nil, err
	}
	from := e.From
	if from == "" {
		from = e.Username
	}
	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.SMTPHost)
	}
	return &Mailer{
		addr:   net.JoinHostPort(e.SMTPHost, strconv.Itoa(e.SMTPPort)),
		auth:   auth,
		from:   from,
		to:     e.To,
		alert:  alert,
		mutate: mutate,
		send:   smtp.SendMail,
	}, nil
}

func parseMessage(name string, m config.Message) (message, error) {
	title, err := template.New(name + "_title").Funcs(funcs).Parse(m.Title)
	if err != nil {
		return message{}, fmt.Errorf("email.messages.%s.title: %w", name, err)
	}
	body, err := template.New(name + "_body").Funcs(funcs).Parse(m.Body)
	if err != nil {
		return message{}, fmt.Errorf("email.messages.%s.body: %w", name, err)
	}
	return message{title: title, body: body}, nil
}

func (m *Mailer) SendAlert(ctx context.Context, installs int, lookback time.Duration) error {
	if err := m.deliver(m.alert, alertData{Installs: installs, LookbackMinutes: int(lookback.Minutes())}); err != nil {
		return fmt.Errorf("alert mail: %w", err)
	}
	zerolog.Ctx(ctx).Info().Msg("alert sent in email")
	return nil
}

func (m *Mailer) SendMutationNotice(ctx context.Context, o engine.MutationOutcome) error {
	if o.Empty() {
		return nil
	}
	data := mutateData{
		Status:       o.Status,
		Succeeded:    names(o.Succeeded),
		Failed:       names(o.Failed),
		SucceededIDs: ids(o.Succeeded),
		FailedIDs:    ids(o.Failed),
	}
	if err := m.deliver(m.mutate, data); err != nil {
		return fmt.Errorf("mutate mail: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("status", string(o.Status)).Msg("mutate notice sent in email")
	return nil
}

func (m *Mailer) deliver(msg message, data any) error {
	var title, body bytes.Buffer
	if err := msg.title.Execute(&title, data); err != nil {
		return err
	}
	if err := msg.body.Execute(&body, data); err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", strings.TrimSpace(title.String()))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return m.send(m.addr, m.auth, m.from, m.to, buf.Bytes())
}

func names(ts []engine.Target) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if t.Name != "" {
			out = append(out, t.Name)
		} else {
			out = append(out, t.ID)
		}
	}
	return out
}

func ids(ts []engine.Target) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

// Log writes notices to the cycle logger only. Used when no SMTP host is configured.
type Log struct{}

func (Log) SendAlert(ctx context.Context, installs int, lookback time.Duration) error {
	zerolog.Ctx(ctx).Warn().Int("installs", installs).Dur("lookback", lookback).Msg("install alert")
	return nil
}

func (Log) SendMutationNotice(ctx context.Context, o engine.MutationOutcome) error {
	zerolog.Ctx(ctx).Info().Str("status", string(o.Status)).
		Strs("succeeded", names(o.Succeeded)).Strs("failed", names(o.Failed)).Msg("campaign status changed")
	return nil
}

// New picks the mailer when SMTP is configured, the log notifier otherwise.
func New(cfg config.Config) (engine.Notifier, error) {
	if cfg.Email.SMTPHost == "" {
		return Log{}, nil
	}
	return NewMailer(cfg)
}
