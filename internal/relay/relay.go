// Package relay implements the room session state machine: it binds
// connections to rooms and roles, checks host permissions and forwards
// signaling traffic between peers.
//
// A Relay is not safe for concurrent use. Every call must come from a single
// goroutine (see handlers.Hub), so each event runs to completion before the
// next one is dispatched.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mossy-p/webrtc-relay/internal/models"
	"github.com/mossy-p/webrtc-relay/internal/registry"
)

const (
	defaultGuestName  = "Guest"
	defaultKickReason = "kicked by host"
	rejectReason      = "host rejected"
)

var emptyObject = json.RawMessage(`{}`)

// Sender delivers a frame to a live connection. It must not block.
type Sender interface {
	Send(connID string, env models.Envelope)
}

// session is what the relay knows about one connection.
// The zero value is a connected, not yet joined connection.
type session struct {
	role   models.Role
	roomID string
	name   string
}

// Relay dispatches client requests against the room registry
type Relay struct {
	rooms    *registry.Registry
	out      Sender
	presence Presence
	now      func() time.Time
	logger   *slog.Logger

	conns map[string]*session
}

type Option func(*Relay)

// WithPresence reports membership changes to p
func WithPresence(p Presence) Option {
	return func(r *Relay) { r.presence = p }
}

// WithClock overrides the clock used for lobby timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// New creates a relay over rooms that writes to out
func New(rooms *registry.Registry, out Sender, opts ...Option) *Relay {
	r := &Relay{
		rooms:    rooms,
		out:      out,
		presence: NopPresence{},
		now:      time.Now,
		logger:   slog.Default(),
		conns:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a live connection and tells it its own ID
func (r *Relay) Connect(connID string) {
	r.conns[connID] = &session{}
	r.send(connID, models.TypeConnected, models.ConnectedPayload{ID: connID})
}

// CreateRoom creates an empty room and returns its ID
func (r *Relay) CreateRoom() string {
	id := r.rooms.CreateRoom()
	r.presence.RoomCreated(id)
	r.logger.Info("room created", "room", id)
	return id
}

// Handle dispatches one request from connID. ackID, when non-zero, is echoed
// in the ack frame for requests that answer their caller.
//
// The returned error says why a request had no effect. It is meant for logs;
// anything the caller should learn has already been sent to it.
func (r *Relay) Handle(connID string, ackID uint64, req models.Request) error {
	if _, ok := r.conns[connID]; !ok {
		return ErrUnknownConnection
	}

	switch req := req.(type) {
	case models.CreateRoomRequest:
		id := r.CreateRoom()
		r.ack(connID, ackID, models.CreateRoomResponse{Room: id})
		return nil
	case models.JoinRequest:
		return r.join(connID, ackID, req)
	case models.AcceptGuestRequest:
		return r.acceptGuest(connID, req)
	case models.RejectGuestRequest:
		return r.rejectGuest(connID, req)
	case models.SignalRequest:
		return r.signal(connID, req)
	case models.HostCommandRequest:
		return r.hostCommand(connID, req)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

func (r *Relay) join(connID string, ackID uint64, req models.JoinRequest) error {
	s := r.conns[connID]
	if s.role != "" {
		r.ack(connID, ackID, models.JoinAck{Error: models.ErrCodeAlreadyJoined})
		return ErrAlreadyJoined
	}
	if !req.Role.Valid() {
		r.ack(connID, ackID, models.JoinAck{Error: models.ErrCodeInvalidRole})
		return fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	room, err := r.rooms.GetRoom(req.Room)
	if err != nil {
		r.ack(connID, ackID, models.JoinAck{Error: models.ErrCodeRoomNotFound})
		return fmt.Errorf("join %q: %w", req.Room, err)
	}

	name := req.Name
	if name == "" {
		name = string(req.Role)
	}
	*s = session{role: req.Role, roomID: room.ID, name: name}
	r.presence.MemberJoined(room.ID, connID, req.Role)
	r.logger.Info("joined room", "conn", connID, "room", room.ID, "role", req.Role, "name", name)

	switch req.Role {
	case models.RoleHost:
		room.HostID = connID
		r.sendLobby(connID, room)
		r.ack(connID, ackID, models.JoinAck{OK: true})

	case models.RoleGuest:
		entryName := req.Name
		if entryName == "" {
			entryName = defaultGuestName
		}
		room.Lobby = append(room.Lobby, models.LobbyEntry{
			ID:   connID,
			Name: entryName,
			When: r.now().UnixMilli(),
		})
		if room.HostID != "" {
			r.sendLobby(room.HostID, room)
		}
		r.ack(connID, ackID, models.JoinAck{Status: "waiting"})

	case models.RoleViewer:
		room.ViewerID = connID
		if room.HostID != "" {
			r.send(room.HostID, models.TypeViewerReady, models.ViewerReadyPayload{ViewerID: connID})
		}
		r.ack(connID, ackID, models.JoinAck{OK: true})
	}
	return nil
}

func (r *Relay) acceptGuest(connID string, req models.AcceptGuestRequest) error {
	room, err := r.hostRoom(connID, req.Room)
	if err != nil {
		return err
	}
	if !room.RemoveFromLobby(req.GuestID) {
		return fmt.Errorf("accept %q: %w", req.GuestID, ErrMissingTarget)
	}

	room.GuestID = req.GuestID
	r.send(req.GuestID, models.TypeAccepted, models.AcceptedPayload{Room: room.ID, HostID: connID})
	r.send(connID, models.TypeGuestAccepted, models.GuestAcceptedPayload{GuestID: req.GuestID})
	r.sendLobby(connID, room)
	r.logger.Info("guest accepted", "room", room.ID, "guest", req.GuestID)
	return nil
}

func (r *Relay) rejectGuest(connID string, req models.RejectGuestRequest) error {
	room, err := r.hostRoom(connID, req.Room)
	if err != nil {
		return err
	}
	if !room.RemoveFromLobby(req.GuestID) {
		return fmt.Errorf("reject %q: %w", req.GuestID, ErrMissingTarget)
	}

	r.send(req.GuestID, models.TypeRejected, models.RejectedPayload{Reason: rejectReason})
	r.sendLobby(connID, room)
	r.logger.Info("guest rejected", "room", room.ID, "guest", req.GuestID)
	return nil
}

func (r *Relay) signal(connID string, req models.SignalRequest) error {
	if req.To == "" {
		return ErrMissingTarget
	}
	if _, ok := r.conns[req.To]; !ok {
		return fmt.Errorf("signal to %q: %w", req.To, ErrMissingTarget)
	}

	r.send(req.To, models.TypeSignal, models.SignalPayload{
		From: connID,
		Type: req.Type,
		Data: req.Data,
	})
	return nil
}

func (r *Relay) hostCommand(connID string, req models.HostCommandRequest) error {
	room, err := r.hostRoom(connID, req.Room)
	if err != nil {
		return err
	}

	switch req.Cmd {
	case models.CommandKick:
		if !r.memberOf(req.Target, room.ID) {
			return fmt.Errorf("kick %q: %w", req.Target, ErrMissingTarget)
		}
		r.send(req.Target, models.TypeKicked, models.KickedPayload{Reason: kickReason(req.Payload)})
		if room.GuestID == req.Target {
			room.GuestID = ""
		}
		if room.RemoveFromLobby(req.Target) {
			r.sendLobby(connID, room)
		}
		r.logger.Info("member kicked", "room", room.ID, "target", req.Target)

	case models.CommandMute:
		if !r.memberOf(req.Target, room.ID) {
			return fmt.Errorf("mute %q: %w", req.Target, ErrMissingTarget)
		}
		r.send(req.Target, models.TypeMute, orEmpty(req.Payload))

	case models.CommandOverlay:
		if room.ViewerID == "" {
			return fmt.Errorf("overlay: %w", ErrMissingTarget)
		}
		r.send(room.ViewerID, models.TypeOverlay, orEmpty(req.Payload))

	case models.CommandStartForward:
		r.send(connID, models.TypeStartForward, models.StartForwardPayload{
			ViewerID: optional(room.ViewerID),
			GuestID:  optional(room.GuestID),
		})
		if room.ViewerID != "" {
			r.send(room.ViewerID, models.TypePrepareViewer, models.PrepareViewerPayload{
				Room:   room.ID,
				HostID: room.HostID,
			})
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, req.Cmd)
	}
	return nil
}

// Disconnect forgets connID and cleans up the room it had joined.
// It never fails, even when the room is already gone.
func (r *Relay) Disconnect(connID string) {
	s, ok := r.conns[connID]
	delete(r.conns, connID)
	if !ok || s.role == "" {
		return
	}

	room, err := r.rooms.GetRoom(s.roomID)
	if err != nil {
		return
	}
	r.presence.MemberLeft(room.ID, connID)
	r.logger.Info("left room", "conn", connID, "room", room.ID, "role", s.role)

	switch s.role {
	case models.RoleHost:
		// A host replaced by a later host join no longer owns the room
		if room.HostID != connID {
			return
		}
		if room.GuestID != "" {
			r.send(room.GuestID, models.TypeHostLeft, nil)
		}
		if room.ViewerID != "" {
			r.send(room.ViewerID, models.TypeHostLeft, nil)
		}
		for _, e := range room.Lobby {
			r.send(e.ID, models.TypeHostLeft, nil)
		}
		r.rooms.DeleteRoom(room.ID)
		r.presence.RoomDeleted(room.ID)
		r.logger.Info("room closed", "room", room.ID)

	case models.RoleGuest:
		room.RemoveFromLobby(connID)
		if room.GuestID == connID {
			room.GuestID = ""
		}
		if room.HostID != "" {
			r.sendLobby(room.HostID, room)
		}

	case models.RoleViewer:
		if room.ViewerID != connID {
			return
		}
		room.ViewerID = ""
		if room.HostID != "" {
			r.send(room.HostID, models.TypeViewerLeft, nil)
		}
	}
}

// RoomSummary returns the public info of a room
func (r *Relay) RoomSummary(roomID string) (models.RoomSummary, error) {
	room, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return models.RoomSummary{}, err
	}
	return room.Summary(), nil
}

// Rooms returns a snapshot of every live room
func (r *Relay) Rooms() []models.RoomSnapshot {
	return r.rooms.Snapshot()
}

// RoomCount returns the number of live rooms
func (r *Relay) RoomCount() int {
	return r.rooms.Len()
}

// Connections returns the number of live connections
func (r *Relay) Connections() int {
	return len(r.conns)
}

// hostRoom returns the room when connID is its current host
func (r *Relay) hostRoom(connID, roomID string) (*models.Room, error) {
	room, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return nil, fmt.Errorf("room %q: %w", roomID, err)
	}
	if room.HostID == "" || room.HostID != connID {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrUnauthorized)
	}
	return room, nil
}

func (r *Relay) memberOf(connID, roomID string) bool {
	s, ok := r.conns[connID]
	return ok && s.roomID == roomID
}

func (r *Relay) sendLobby(connID string, room *models.Room) {
	r.send(connID, models.TypeLobbyList, room.LobbySnapshot())
}

func (r *Relay) ack(connID string, ackID uint64, payload any) {
	if ackID == 0 {
		return
	}
	r.out.Send(connID, models.Envelope{Type: models.TypeAck, ID: ackID, Payload: payload})
}

func (r *Relay) send(connID string, typ models.MessageType, payload any) {
	r.out.Send(connID, models.Envelope{Type: typ, Payload: payload})
}

func kickReason(payload json.RawMessage) string {
	var p struct {
		Reason string `json:"reason"`
	}
	if len(payload) > 0 {
		// Anything that isn't an object with a reason falls back to the default
		_ = json.Unmarshal(payload, &p)
	}
	if p.Reason == "" {
		return defaultKickReason
	}
	return p.Reason
}

func orEmpty(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 || string(payload) == "null" {
		return emptyObject
	}
	return payload
}

func optional(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
