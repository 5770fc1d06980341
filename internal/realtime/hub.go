// Package realtime рассылает события заказов подключённым дашбордам по WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// RoomOrders — комната дашборда заказов.
const RoomOrders = "orders"

// ErrHubStopped возвращается при рассылке после остановки хаба.
var ErrHubStopped = errors.New("realtime hub is stopped")

// Event — сообщение, которое получает клиент.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomEvent struct {
	room  string
	event Event
}

// Hub хранит подключённых клиентов по комнатам и рассылает им события.
type Hub struct {
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent

	done     chan struct{}
	stopOnce sync.Once
	logger   *log.Entry
}

// NewHub создаёт хаб. Рассылка начинается после запуска Run.
func NewHub(logger *log.Entry) *Hub {
	if logger == nil {
		logger = log.New().WithField("component", "realtime-hub")
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx. При выходе все клиенты отключаются.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]struct{})
			}
			h.rooms[client.room][client] = struct{}{}
			h.mu.Unlock()
			h.logger.WithField("room", client.room).Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.event)
			if err != nil {
				h.logger.WithError(err).WithField("type", ev.event.Type).Warn("event marshal failed")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.room] {
				select {
				case client.send <- message:
				default:
					// Медленный клиент.
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast ставит событие в очередь рассылки комнате room.
func (h *Hub) Broadcast(ctx context.Context, room string, event Event) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- roomEvent{room: room, event: event}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount возвращает число клиентов в комнате.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for room, clients := range h.rooms {
			for client := range clients {
				close(client.send)
			}
			delete(h.rooms, room)
		}
		h.mu.Unlock()
	})
}
