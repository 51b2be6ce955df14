package chatws

import (
	"encoding/json"
	"testing"
	"time"
)

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case payload := <-client.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectSilence(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	return hub
}

func TestToUserReachesEveryConnection(t *testing.T) {
	hub := startHub(t)

	phone := NewClient(hub, nil, 2)
	laptop := NewClient(hub, nil, 2)
	other := NewClient(hub, nil, 3)
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)

	hub.ToUser(2, "new_message", map[string]any{"id": 31})

	for _, client := range []*Client{phone, laptop} {
		event := receiveEvent(t, client)
		if event.Event != "new_message" {
			t.Fatalf("unexpected event %q", event.Event)
		}
		if event.Timestamp == "" {
			t.Fatal("expected emit-time timestamp")
		}
	}
	expectSilence(t, other)
}

func TestToConversationExcludesOriginConnection(t *testing.T) {
	hub := startHub(t)

	sender := NewClient(hub, nil, 1)
	receiver := NewClient(hub, nil, 2)
	hub.Register(sender)
	hub.Register(receiver)
	hub.JoinConversation(sender, 7)
	hub.JoinConversation(receiver, 7)

	hub.ToConversation(7, "new_message", map[string]any{"id": 31}, sender.id)

	event := receiveEvent(t, receiver)
	if event.Event != "new_message" {
		t.Fatalf("unexpected event %q", event.Event)
	}
	expectSilence(t, sender)
}

func TestLeaveConversationStopsRoomDelivery(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, 2)
	hub.Register(client)
	hub.JoinConversation(client, 7)
	hub.LeaveConversation(client, 7)

	hub.ToConversation(7, "new_message", nil, 0)
	expectSilence(t, client)

	// Private channel delivery is unaffected by room membership.
	hub.ToUser(2, "unread_count_updated", nil)
	if event := receiveEvent(t, client); event.Event != "unread_count_updated" {
		t.Fatalf("unexpected event %q", event.Event)
	}
}

func TestUnregisterSignalsDoneAndDropsRooms(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, 2)
	hub.Register(client)
	hub.JoinConversation(client, 7)
	hub.Unregister(client)

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for done signal")
	}

	// Deliveries after unregister must not panic or reach the client.
	hub.ToUser(2, "new_message", nil)
	hub.ToConversation(7, "new_message", nil, 0)
	time.Sleep(20 * time.Millisecond)
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected delivery after unregister: %s", payload)
	default:
	}
}

func TestSlowConnectionDropKeepsWritesSafe(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, 2)
	hub.Register(client)
	hub.JoinConversation(client, 7)

	// No WritePump is draining, so overflowing the send buffer makes the hub
	// drop the connection as slow.
	for i := 0; i < cap(client.send)+1; i++ {
		hub.ToUser(2, "new_message", map[string]any{"seq": i})
	}

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("expected hub to drop the slow connection")
	}

	// The read side may still be handling an inbound event; its acks must be
	// discarded, not panic on a closed channel.
	client.writeEvent("message_sent", map[string]any{"id": 31})
	client.writeEvent("unread_count_updated", map[string]any{"unread_count": 0})

	// Repeated teardown from both sides stays idempotent.
	hub.Unregister(client)
	client.shutdown()
}

func TestToAllReachesEveryUser(t *testing.T) {
	hub := startHub(t)

	a := NewClient(hub, nil, 1)
	b := NewClient(hub, nil, 2)
	hub.Register(a)
	hub.Register(b)

	hub.ToAll("system", map[string]any{"notice": "maintenance"})

	for _, client := range []*Client{a, b} {
		if event := receiveEvent(t, client); event.Event != "system" {
			t.Fatalf("unexpected event %q", event.Event)
		}
	}
}
