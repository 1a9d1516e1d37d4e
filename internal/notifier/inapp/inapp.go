package inapp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/pkg/messaging"
)

const channel = "notifications"

// Publisher mirrors every dispatched notification onto the message broker so
// staff dashboards can subscribe to a live feed.
type Publisher struct {
	broker messaging.Broker
}

func NewPublisher(broker messaging.Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) Dispatch(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error {
	rendered, err := notifier.Render(recipient, payload)
	if err != nil {
		return fmt.Errorf("failed to render notification: %w", err)
	}

	event := &model.NotificationEvent{
		ID:         uuid.New(),
		TemplateID: rendered.TemplateID,
		Recipient:  recipient,
		Subject:    rendered.Subject,
		Body:       rendered.Body,
		CreatedAt:  time.Now(),
	}

	return p.broker.Publish(ctx, channel, &messaging.Message{
		Type:    rendered.TemplateID,
		Payload: event,
	})
}
