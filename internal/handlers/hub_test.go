package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mossy-p/webrtc-relay/internal/models"
	"github.com/mossy-p/webrtc-relay/internal/registry"
	"github.com/mossy-p/webrtc-relay/internal/relay"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(registry.New(), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

// newTestClient is a client without a socket; frames land in its send buffer
func newTestClient(id string) *Client {
	return &Client{ID: id, send: make(chan models.Envelope, 64)}
}

func recv(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case env, ok := <-c.send:
		if !ok {
			t.Fatalf("%s: send channel closed", c.ID)
		}
		return env
	case <-time.After(time.Second):
		t.Fatalf("%s: timed out waiting for a frame", c.ID)
	}
	return models.Envelope{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("%s: unexpected frame %+v", c.ID, env)
	case <-time.After(20 * time.Millisecond):
	}
}

func submitJSON(t *testing.T, hub *Hub, c *Client, typ models.MessageType, id uint64, payload string) {
	t.Helper()
	msg := models.InboundMessage{Type: typ, ID: id}
	if payload != "" {
		msg.Payload = json.RawMessage(payload)
	}
	if !hub.submit(c, msg) {
		t.Fatal("hub stopped")
	}
}

func TestHubRegisterGreets(t *testing.T) {
	hub := startHub(t)
	c := newTestClient("c1")

	if !hub.Register(c) {
		t.Fatal("Register failed")
	}
	env := recv(t, c)
	if env.Type != models.TypeConnected {
		t.Errorf("Expected connected frame, got %s", env.Type)
	}
}

func TestHubSessionFlow(t *testing.T) {
	hub := startHub(t)
	host, guest := newTestClient("H"), newTestClient("G")
	hub.Register(host)
	hub.Register(guest)
	recv(t, host)
	recv(t, guest)

	submitJSON(t, hub, host, models.TypeCreateRoom, 1, "")
	ack := recv(t, host)
	if ack.Type != models.TypeAck || ack.ID != 1 {
		t.Fatalf("Expected ack 1, got %+v", ack)
	}
	roomID := ack.Payload.(models.CreateRoomResponse).Room

	submitJSON(t, hub, host, models.TypeJoin, 2, `{"role":"host","room":"`+roomID+`"}`)
	if env := recv(t, host); env.Type != models.TypeLobbyList {
		t.Fatalf("Expected lobby-list, got %s", env.Type)
	}
	if env := recv(t, host); env.Type != models.TypeAck || !env.Payload.(models.JoinAck).OK {
		t.Fatalf("Expected ok ack, got %+v", env)
	}

	submitJSON(t, hub, guest, models.TypeJoin, 1, `{"role":"guest","room":"`+roomID+`","name":"Gus"}`)
	if env := recv(t, guest); env.Payload.(models.JoinAck).Status != "waiting" {
		t.Fatalf("Expected waiting ack, got %+v", env)
	}
	lobby := recv(t, host).Payload.([]models.LobbyEntry)
	if len(lobby) != 1 || lobby[0].ID != "G" || lobby[0].Name != "Gus" {
		t.Fatalf("Unexpected lobby %+v", lobby)
	}

	// a malformed frame is dropped and the hub keeps serving
	submitJSON(t, hub, guest, models.TypeJoin, 0, `"not an object"`)
	submitJSON(t, hub, guest, "no-such-type", 0, "")

	submitJSON(t, hub, host, models.TypeAcceptGuest, 0, `{"room":"`+roomID+`","guestId":"G"}`)
	if env := recv(t, guest); env.Type != models.TypeAccepted {
		t.Fatalf("Expected accepted, got %s", env.Type)
	}
	if env := recv(t, host); env.Type != models.TypeGuestAccepted {
		t.Fatalf("Expected guest-accepted, got %s", env.Type)
	}
	recv(t, host) // lobby-list

	hub.Unregister(host)
	if env := recv(t, guest); env.Type != models.TypeHostLeft {
		t.Fatalf("Expected host-left, got %s", env.Type)
	}
	if _, ok := <-host.send; ok {
		t.Error("Expected host send channel to be closed")
	}

	var count int
	if err := hub.Do(context.Background(), func(r *relay.Relay) { count = r.RoomCount() }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected room to be deleted, got %d rooms", count)
	}
}

func TestHubSendToUnknownConnection(t *testing.T) {
	hub := startHub(t)
	a := newTestClient("A")
	hub.Register(a)
	recv(t, a)

	submitJSON(t, hub, a, models.TypeSignal, 0, `{"to":"nobody","type":"offer","data":{}}`)
	expectNothing(t, a)

	// hub still alive
	if err := hub.Do(context.Background(), func(*relay.Relay) {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := startHub(t)
	slow := &Client{ID: "slow", send: make(chan models.Envelope, 1)}
	sender := newTestClient("sender")
	hub.Register(slow) // connected frame fills the buffer
	hub.Register(sender)
	recv(t, sender)

	submitJSON(t, hub, sender, models.TypeSignal, 0, `{"to":"slow","type":"offer"}`)
	submitJSON(t, hub, sender, models.TypeSignal, 0, `{"to":"slow","type":"answer"}`)
	if err := hub.Do(context.Background(), func(*relay.Relay) {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	if len(slow.send) != 1 {
		t.Errorf("Expected buffer to stay at 1, got %d", len(slow.send))
	}
}

func TestHubUnregisterTwice(t *testing.T) {
	hub := startHub(t)
	c := newTestClient("c1")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c) // must not close the channel twice

	if err := hub.Do(context.Background(), func(*relay.Relay) {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(registry.New(), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := newTestClient("c1")
	hub.Register(c)
	recv(t, c)

	cancel()
	<-hub.Done()

	if _, ok := <-c.send; ok {
		t.Error("Expected client channel closed on stop")
	}
	if err := hub.Do(context.Background(), func(*relay.Relay) {}); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Expected ErrHubStopped, got %v", err)
	}
	if hub.Register(newTestClient("late")) {
		t.Error("Register should fail after stop")
	}
	hub.Unregister(c) // returns instead of blocking
}

func TestHubDoRespectsContext(t *testing.T) {
	hub := NewHub(registry.New(), discardLogger()) // never started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := hub.Do(ctx, func(*relay.Relay) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
