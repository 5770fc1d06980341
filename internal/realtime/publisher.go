package realtime

import (
	"context"
	"encoding/json"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// OutboxPublisher пересылает события outbox в комнату хаба.
type OutboxPublisher struct {
	hub  *Hub
	room string
}

// NewOutboxPublisher создаёт publisher для комнаты room (по умолчанию RoomOrders).
func NewOutboxPublisher(hub *Hub, room string) *OutboxPublisher {
	if room == "" {
		room = RoomOrders
	}
	return &OutboxPublisher{hub: hub, room: room}
}

func (p *OutboxPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 || !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return p.hub.Broadcast(ctx, p.room, Event{Type: msg.EventType, Payload: payload})
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
