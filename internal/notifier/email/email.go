package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/renalcare/capd-api/internal/config"
	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/pkg/circuitbreaker"
)

// Sender dispatches notifications over SMTP. A circuit breaker keeps a
// flapping mail provider from stalling whole reminder batches.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	cb     *circuitbreaker.CircuitBreaker
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

func (s *Sender) Dispatch(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error {
	if recipient.Email == "" {
		return fmt.Errorf("recipient has no email address")
	}

	rendered, err := notifier.Render(recipient, payload)
	if err != nil {
		return fmt.Errorf("failed to render notification: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient.Email)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/plain", rendered.Body)

	// gomail has no context support; honor the deadline by racing it.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.cb.Execute(func() error {
			return s.dialer.DialAndSend(m)
		})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
