// Package events carries scrap request status changes from the API to the chat rooms.
package events

import (
	"context"
	"fmt"
	"time"

	"letscrap-backend/internal/models"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const TopicStatusChanged = "scrap_request.status_changed"

// StatusChanged is published after a scrap request moves to a new status.
type StatusChanged struct {
	RequestID uint                 `json:"request_id"`
	UserID    uint                 `json:"user_id"`
	DealerID  *uint                `json:"dealer_id"`
	From      models.RequestStatus `json:"from"`
	Status    models.RequestStatus `json:"status"`
	ChangedBy uint                 `json:"changed_by"`
	ChangedAt time.Time            `json:"changed_at"`
}

// Publisher is what request handlers need from the bus.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, newLoggerAdapter()),
	}
}

func (b *Bus) PublishStatusChanged(ctx context.Context, ev StatusChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(TopicStatusChanged, msg); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// SubscribeStatusChanged delivers decoded events until ctx is done.
// Malformed payloads are acked and skipped.
func (b *Bus) SubscribeStatusChanged(ctx context.Context) (<-chan StatusChanged, error) {
	msgs, err := b.pubSub.Subscribe(ctx, TopicStatusChanged)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan StatusChanged)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev StatusChanged
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Discard drops every event.
type Discard struct{}

func (Discard) PublishStatusChanged(context.Context, StatusChanged) error { return nil }
