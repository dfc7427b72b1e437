package handlers

import (
	"context"
	"log/slog"

	"github.com/mossy-p/webrtc-relay/internal/models"
	"github.com/mossy-p/webrtc-relay/internal/registry"
	"github.com/mossy-p/webrtc-relay/internal/relay"
)

// Hub is the single goroutine that owns the relay. Every connection event,
// inbound frame and HTTP room call is funneled through its channels, so room
// state is only ever touched by one event at a time.
type Hub struct {
	relay   *relay.Relay
	clients map[string]*Client
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	calls      chan func(*relay.Relay)
	stopped    chan struct{}
}

type inboundFrame struct {
	client *Client
	msg    models.InboundMessage
}

// NewHub creates a hub whose relay runs over rooms
func NewHub(rooms *registry.Registry, logger *slog.Logger, opts ...relay.Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		calls:      make(chan func(*relay.Relay)),
		stopped:    make(chan struct{}),
	}
	opts = append([]relay.Option{relay.WithLogger(logger)}, opts...)
	h.relay = relay.New(rooms, h, opts...)
	return h
}

// Run processes events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.send)
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			h.relay.Connect(client.ID)
			h.logger.Debug("client registered", "conn", client.ID)

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; !ok {
				continue
			}
			delete(h.clients, client.ID)
			h.relay.Disconnect(client.ID)
			close(client.send)
			h.logger.Debug("client unregistered", "conn", client.ID)

		case frame := <-h.inbound:
			h.dispatch(frame)

		case fn := <-h.calls:
			fn(h.relay)
		}
	}
}

func (h *Hub) dispatch(frame inboundFrame) {
	req, err := models.DecodeRequest(frame.msg)
	if err != nil {
		h.logger.Debug("dropping frame", "conn", frame.client.ID, "type", frame.msg.Type, "err", err)
		return
	}
	if err := h.relay.Handle(frame.client.ID, frame.msg.ID, req); err != nil {
		h.logger.Debug("request ignored", "conn", frame.client.ID, "type", frame.msg.Type, "err", err)
	}
}

// Send implements relay.Sender. It only runs on the hub goroutine.
func (h *Hub) Send(connID string, env models.Envelope) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case client.send <- env:
	default:
		h.logger.Warn("send buffer full, dropping message", "conn", connID, "type", env.Type)
	}
}

// Do runs fn on the hub goroutine and waits for it to finish
func (h *Hub) Do(ctx context.Context, fn func(*relay.Relay)) error {
	done := make(chan struct{})
	call := func(r *relay.Relay) {
		fn(r)
		close(done)
	}

	select {
	case h.calls <- call:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

func (h *Hub) submit(client *Client, msg models.InboundMessage) bool {
	select {
	case h.inbound <- inboundFrame{client: client, msg: msg}:
		return true
	case <-h.stopped:
		return false
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}
