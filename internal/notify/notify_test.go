package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pausee/internal/config"
	"pausee/internal/engine"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Email.SMTPHost = "smtp.example.com"
	cfg.Email.SMTPPort = 587
	cfg.Email.Username = "bot@example.com"
	cfg.Email.Password = "pw"
	cfg.Email.To = []string{"ops@example.com", "ads@example.com"}
	cfg.Email.Messages.Alert = config.Message{Title: "Installs alert", Body: "{{.Installs}} installs in {{.LookbackMinutes}} minutes"}
	cfg.Email.Messages.Mutate = config.Message{
		Title: "Campaigns {{.Status}}",
		Body:  "done: {{join .Succeeded \", \"}}\nfailed: {{join .Failed \", \"}}",
	}
	return cfg
}

func newTestMailer(t *testing.T, out *[]sent, sendErr error) *Mailer {
	t.Helper()
	m, err := NewMailer(testConfig())
	require.NoError(t, err)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*out = append(*out, sent{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	return m
}

func TestMailer_SendAlert(t *testing.T) {
	var out []sent
	m := newTestMailer(t, &out, nil)

	require.NoError(t, m.SendAlert(context.Background(), 640, 30*time.Minute))
	require.Len(t, out, 1)
	assert.Equal(t, "smtp.example.com:587", out[0].addr)
	assert.Equal(t, "bot@example.com", out[0].from)
	assert.Equal(t, []string{"ops@example.com", "ads@example.com"}, out[0].to)
	assert.Contains(t, out[0].msg, "Subject: Installs alert\r\n")
	assert.Contains(t, out[0].msg, "To: ops@example.com, ads@example.com\r\n")
	assert.True(t, strings.HasSuffix(out[0].msg, "640 installs in 30 minutes"))
}

func TestMailer_SendMutationNotice(t *testing.T) {
	tests := []struct {
		name     string
		outcome  engine.MutationOutcome
		wantSent bool
		wantBody string
	}{
		{
			name: "names with id fallback",
			outcome: engine.MutationOutcome{
				Status:    engine.StatusPaused,
				Succeeded: []engine.Target{{ID: "1", Name: "Brand"}, {ID: "2"}},
				Failed:    []engine.Target{{ID: "3", Name: "Generic"}},
			},
			wantSent: true,
			wantBody: "done: Brand, 2\r\nfailed: Generic",
		},
		{name: "nothing to report", outcome: engine.MutationOutcome{Status: engine.StatusEnabled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []sent
			m := newTestMailer(t, &out, nil)
			require.NoError(t, m.SendMutationNotice(context.Background(), tt.outcome))
			if !tt.wantSent {
				assert.Empty(t, out)
				return
			}
			require.Len(t, out, 1)
			assert.Contains(t, out[0].msg, "Subject: Campaigns PAUSED\r\n")
			assert.Contains(t, out[0].msg, tt.wantBody)
		})
	}
}

func TestMailer_SendError(t *testing.T) {
	var out []sent
	m := newTestMailer(t, &out, errors.New("535 auth failed"))
	err := m.SendAlert(context.Background(), 1, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

func TestNewMailer_Invalid(t *testing.T) {
	cfg := testConfig()
	cfg.Email.Messages.Alert.Body = "{{.Installs"
	_, err := NewMailer(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Email.To = nil
	_, err = NewMailer(cfg)
	assert.Error(t, err)
}

func TestNew_FallsBackToLog(t *testing.T) {
	n, err := New(config.Config{})
	require.NoError(t, err)
	assert.IsType(t, Log{}, n)
	assert.NoError(t, n.SendAlert(context.Background(), 1, time.Minute))
}
