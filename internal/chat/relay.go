package chat

import (
	"context"
	"time"

	"letscrap-backend/internal/events"
	"letscrap-backend/internal/logging"
)

// StatusSource is the subscribing side of the event bus.
type StatusSource interface {
	SubscribeStatusChanged(ctx context.Context) (<-chan events.StatusChanged, error)
}

// Relay forwards status changes into the matching request room.
type Relay struct {
	source StatusSource
	hub    *Hub
}

func NewRelay(source StatusSource, hub *Hub) *Relay {
	return &Relay{source: source, hub: hub}
}

func (r *Relay) Serve(ctx context.Context) error {
	ch, err := r.source.SubscribeStatusChanged(ctx)
	if err != nil {
		return err
	}

	for ev := range ch {
		r.hub.Broadcast(ev.RequestID, Frame{
			Event: EventRequestStatus,
			Data: StatusResponse{
				RequestID: ev.RequestID,
				Status:    ev.Status,
				DealerID:  ev.DealerID,
				ChangedBy: ev.ChangedBy,
				ChangedAt: ev.ChangedAt.UTC().Format(time.RFC3339),
			},
		})
		logging.Debug().Uint("request_id", ev.RequestID).Str("status", string(ev.Status)).Msg("status relayed to chat")
	}
	return ctx.Err()
}

func (r *Relay) String() string { return "chat-status-relay" }
