package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func mockClient(hub *Hub, room string) *Client {
	return &Client{hub: hub, room: room, send: make(chan []byte, sendBuffer)}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHubRegistration(t *testing.T) {
	hub, _ := startHub(t)
	client := mockClient(hub, RoomOrders)

	require.True(t, hub.attach(client))
	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 1 }, time.Second, 5*time.Millisecond)

	hub.detach(client)
	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 0 }, time.Second, 5*time.Millisecond)

	hub.mu.RLock()
	_, exists := hub.rooms[RoomOrders]
	hub.mu.RUnlock()
	require.False(t, exists, "empty room must be removed")

	_, ok := <-client.send
	require.False(t, ok)
}

func TestHubBroadcastToRoomOnly(t *testing.T) {
	hub, _ := startHub(t)
	orders := mockClient(hub, RoomOrders)
	other := mockClient(hub, "other")
	require.True(t, hub.attach(orders))
	require.True(t, hub.attach(other))

	ctx := context.Background()
	require.NoError(t, hub.Broadcast(ctx, RoomOrders, Event{Type: "ping", Payload: json.RawMessage(`{"n":1}`)}))

	ev := receive(t, orders)
	require.Equal(t, "ping", ev.Type)
	require.JSONEq(t, `{"n":1}`, string(ev.Payload))

	select {
	case <-other.send:
		t.Fatal("client in another room must not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	slow := &Client{hub: hub, room: RoomOrders, send: make(chan []byte, 1)}
	require.True(t, hub.attach(slow))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Broadcast(ctx, RoomOrders, Event{Type: "tick", Payload: json.RawMessage("null")}))
	}
	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	client := mockClient(hub, RoomOrders)
	require.True(t, hub.attach(client))
	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		return hub.Broadcast(context.Background(), RoomOrders, Event{Type: "late"}) == ErrHubStopped
	}, time.Second, 5*time.Millisecond)

	for range client.send {
	}
	require.False(t, hub.attach(mockClient(hub, RoomOrders)))
	hub.detach(client)
}

func TestOutboxPublisher(t *testing.T) {
	hub, _ := startHub(t)
	client := mockClient(hub, RoomOrders)
	require.True(t, hub.attach(client))

	msg, err := domain.NewOrderEventMessage(domain.EventOrderStatusChanged, domain.OrderEvent{
		OrderID: "o-1",
		Status:  domain.OrderStatusCompleted,
	})
	require.NoError(t, err)

	pub := NewOutboxPublisher(hub, "")
	require.NoError(t, pub.Publish(context.Background(), msg))

	ev := receive(t, client)
	require.Equal(t, domain.EventOrderStatusChanged, ev.Type)

	var payload domain.OrderEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "o-1", payload.OrderID)
	require.Equal(t, domain.OrderStatusCompleted, payload.Status)

	require.NoError(t, pub.Publish(context.Background(), domain.OutboxMessage{EventType: domain.EventOrderDeleted}))
	ev = receive(t, client)
	require.Equal(t, "null", string(ev.Payload))
}

func TestServeWS(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, RoomOrders, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Broadcast(context.Background(), RoomOrders, Event{Type: domain.EventOrderPlaced, Payload: json.RawMessage(`{"order_id":"o-9"}`)}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, domain.EventOrderPlaced, ev.Type)
	require.JSONEq(t, `{"order_id":"o-9"}`, string(ev.Payload))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(RoomOrders) == 0 }, 2*time.Second, 10*time.Millisecond)
}
