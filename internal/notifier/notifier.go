package notifier

import (
	"context"

	"github.com/renalcare/capd-api/internal/model"
)

// Dispatcher turns a (recipient, payload) pair into an outbound message.
// Implementations are best-effort and possibly slow; callers bound each call
// with a context deadline and treat failures as retriable.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error

func (f DispatcherFunc) Dispatch(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error {
	return f(ctx, recipient, payload)
}
