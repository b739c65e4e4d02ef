package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSMTPClient struct {
	from    string
	rcpts   []string
	data    bytes.Buffer
	quit    bool
	authed  bool
	dataErr error
}

func (f *fakeSMTPClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error   { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	if f.dataErr != nil {
		return nil, f.dataErr
	}
	return nopWriteCloser{&f.data}, nil
}
func (f *fakeSMTPClient) Quit() error                     { f.quit = true; return nil }
func (f *fakeSMTPClient) Close() error                    { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error            { f.authed = true; return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newFakeMailer(t *testing.T, cfg SMTPSettings) (*smtpMailer, *fakeSMTPClient) {
	t.Helper()

	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	client := &fakeSMTPClient{}
	impl := mailer.(*smtpMailer)
	impl.dialFn = func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
		server, local := net.Pipe()
		_ = local.Close()
		return server, client, nil
	}
	return impl, client
}

func TestSMTPMailerDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"someone@example.com"},
		Subject: "hello",
	})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)
}

func TestSMTPMailerSendsMessage(t *testing.T) {
	mailer, client := newFakeMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@example.com",
	})

	err := mailer.Send(context.Background(), Message{
		To:      []string{"invitee@example.com", "invitee@example.com", " "},
		Subject: "You have been\ninvited",
		Body:    "Join the list.",
	})
	require.NoError(t, err)

	require.Equal(t, "noreply@example.com", client.from)
	require.Equal(t, []string{"invitee@example.com"}, client.rcpts)
	require.True(t, client.quit)

	payload := client.data.String()
	require.Contains(t, payload, "Subject: You have been invited")
	require.Contains(t, payload, "Join the list.")
}

func TestSMTPMailerRejectsBadAddresses(t *testing.T) {
	mailer, _ := newFakeMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@example.com",
	})

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}})
	require.Error(t, err)

	err = mailer.Send(context.Background(), Message{To: nil})
	require.Error(t, err)
}
