package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/nhle/garden-reminders/internal/model"
)

// captureSender records what gomail writes to the wire.
type captureSender struct {
	from string
	to   []string
	raw  bytes.Buffer
}

func (c *captureSender) sender() gomail.SendFunc {
	return func(from string, to []string, msg io.WriterTo) error {
		c.from = from
		c.to = to
		_, err := msg.WriteTo(&c.raw)
		return err
	}
}

func TestSMTPTransportBuildsMessage(t *testing.T) {
	capture := &captureSender{}
	tr := NewSMTPTransportWithSender("garden@example.com", capture.sender())

	err := tr.Send(context.Background(), Message{
		Channel: model.ChannelEmail,
		To:      "a@x.com",
		Subject: "Your verification code",
		Body:    "Your code is 123456",
	})
	require.NoError(t, err)

	assert.Equal(t, "garden@example.com", capture.from)
	assert.Equal(t, []string{"a@x.com"}, capture.to)

	mr, err := mail.CreateReader(&capture.raw)
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Your verification code", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@x.com", to[0].Address)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Your code is 123456")
}

func TestSMTPTransportRejectsEmptyRecipient(t *testing.T) {
	capture := &captureSender{}
	tr := NewSMTPTransportWithSender("garden@example.com", capture.sender())

	err := tr.Send(context.Background(), Message{Channel: model.ChannelEmail, Subject: "x"})
	require.Error(t, err)
	assert.Zero(t, capture.raw.Len())
}

func TestSMTPTransportHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocking := gomail.SendFunc(func(string, []string, io.WriterTo) error {
		<-release
		return nil
	})
	tr := NewSMTPTransportWithSender("garden@example.com", blocking)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Send(ctx, Message{Channel: model.ChannelEmail, To: "a@x.com", Body: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRouter(t *testing.T) {
	var got []Message
	record := Func(func(_ context.Context, msg Message) error {
		got = append(got, msg)
		return nil
	})

	r := NewRouter().Handle(model.ChannelEmail, record)

	require.NoError(t, r.Send(context.Background(), Message{Channel: model.ChannelEmail, To: "a@x.com"}))
	err := r.Send(context.Background(), Message{Channel: model.ChannelWeb, To: "u1"})
	assert.True(t, errors.Is(err, ErrNoRoute))
	assert.Len(t, got, 1)
}

func TestLoadSMTPConfigFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "garden")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_FROM", "garden@example.com")

	cfg, err := LoadSMTPConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Configured())
	assert.Equal(t, 2525, cfg.Port)
	assert.Equal(t, "secret", cfg.Password)

	_, err = NewSMTPTransport(cfg)
	require.NoError(t, err)
}

func TestSMTPConfigRequiresFrom(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{Host: "mail.example.com", Port: 25})
	require.Error(t, err)

	_, err = NewSMTPTransport(SMTPConfig{})
	require.Error(t, err)
}

func TestSMTPTransportDialsConfiguredRelay(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "garden@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = tr.Send(ctx, Message{Channel: model.ChannelEmail, To: "a@x.com", Body: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "sending email to a@x.com")
}

func TestLogTransportWritesBody(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(zerolog.New(&buf))

	require.NoError(t, tr.Send(context.Background(), Message{
		Channel: model.ChannelWeb, To: "u1", Subject: "Reminder", Body: "Water the tomatoes",
	}))
	assert.Contains(t, buf.String(), "Water the tomatoes")
	assert.Contains(t, buf.String(), `"to":"u1"`)
}

func TestRedactedLogTransportOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	tr := NewRedactedLogTransport(zerolog.New(&buf))

	require.NoError(t, tr.Send(context.Background(), Message{
		Channel: model.ChannelEmail, To: "a@x.com", Subject: "Your verification code",
		Body: "Your verification code is 482913",
	}))
	out := buf.String()
	assert.NotContains(t, out, "482913")
	assert.Contains(t, out, "Your verification code")
	assert.Contains(t, out, `"body_len":32`)
}
