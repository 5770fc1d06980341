package outbox

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// FanOut публикует сообщение во все каналы по очереди.
// Ошибка любого канала возвращается вызывающему, остальные каналы всё равно получают сообщение.
type FanOut []domain.OutboxPublisher

// NewFanOut отбрасывает nil-каналы.
func NewFanOut(publishers ...domain.OutboxPublisher) FanOut {
	out := make(FanOut, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f FanOut) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc позволяет использовать функцию как OutboxPublisher.
type PublisherFunc func(ctx context.Context, msg domain.OutboxMessage) error

func (f PublisherFunc) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	return f(ctx, msg)
}

var (
	_ domain.OutboxPublisher = FanOut(nil)
	_ domain.OutboxPublisher = PublisherFunc(nil)
)
