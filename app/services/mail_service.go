package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/svetlov/mailboard/config"
	"gopkg.in/gomail.v2"
)

// MailTransport sends one message to a batch of recipients in a single
// synchronous call. Implementations are treated as unreliable; callers
// convert any returned error into a recorded failure outcome.
type MailTransport interface {
	Send(ctx context.Context, subject, body, fromAddress string, recipients []string) error
}

// SMTPMailTransport delivers mail through an SMTP relay via gomail
type SMTPMailTransport struct {
	dialer   *gomail.Dialer
	fromName string
}

// NewSMTPMailTransport creates a transport from SMTP configuration
func NewSMTPMailTransport(cfg config.SMTPConfig) MailTransport {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseTLS && cfg.Port == 465

	return &SMTPMailTransport{
		dialer:   dialer,
		fromName: cfg.FromName,
	}
}

// Send dials the relay and submits the whole recipient batch as one message.
// The context bounds the call; gomail itself has no context support, so the
// dial-and-send runs in a goroutine and the first of completion or context
// cancellation wins.
func (t *SMTPMailTransport) Send(ctx context.Context, subject, body, fromAddress string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	if t.fromName != "" {
		m.SetAddressHeader("From", fromAddress, t.fromName)
	} else {
		m.SetHeader("From", fromAddress)
	}
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send aborted: %w", ctx.Err())
	}
}

// SentMail records one delivered batch for assertions in tests
type SentMail struct {
	Subject     string
	Body        string
	FromAddress string
	Recipients  []string
}

// MockMailTransport is an in-memory transport for tests and local runs
type MockMailTransport struct {
	mu       sync.Mutex
	sent     []SentMail
	failWith error
}

// NewMockMailTransport creates a recording mail transport
func NewMockMailTransport() *MockMailTransport {
	return &MockMailTransport{}
}

// Send records the batch, or returns the injected failure
func (t *MockMailTransport) Send(ctx context.Context, subject, body, fromAddress string, recipients []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failWith != nil {
		return t.failWith
	}

	t.sent = append(t.sent, SentMail{
		Subject:     subject,
		Body:        body,
		FromAddress: fromAddress,
		Recipients:  append([]string(nil), recipients...),
	})
	log.Printf("Mail sent to %s [%s]", strings.Join(recipients, ", "), subject)
	return nil
}

// SentMails returns a copy of the recorded batches
func (t *MockMailTransport) SentMails() []SentMail {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SentMail(nil), t.sent...)
}

// ClearSentMails drops all recorded batches
func (t *MockMailTransport) ClearSentMails() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// FailWith makes every subsequent Send return the given error
func (t *MockMailTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWith = err
}
