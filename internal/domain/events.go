package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Типы событий заказа, публикуемых через outbox.
const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderDeleted       = "OrderDeleted"

	AggregateOrder = "order"
)

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	OrderID        string      `json:"order_id"`
	ShopID         string      `json:"shop_id,omitempty"`
	ShopName       string      `json:"shop_name,omitempty"`
	Status         OrderStatus `json:"status,omitempty"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	Version        int64       `json:"version,omitempty"`
	LineCount      int         `json:"line_count,omitempty"`
	TotalQuantity  int         `json:"total_quantity,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// NewOrderEventMessage упаковывает событие заказа в сообщение outbox.
func NewOrderEventMessage(eventType string, event OrderEvent) (OutboxMessage, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   event.OrderID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// TotalQuantity суммирует количество по всем позициям.
func TotalQuantity(lines []OrderLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}
