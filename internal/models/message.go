package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType names a frame on the signaling socket
type MessageType string

// Client to server
const (
	TypeCreateRoom  MessageType = "create-room"
	TypeJoin        MessageType = "join"
	TypeAcceptGuest MessageType = "host-accept-guest"
	TypeRejectGuest MessageType = "host-reject-guest"
	TypeSignal      MessageType = "signal"
	TypeHostCommand MessageType = "host-command"
)

// Server to client
const (
	TypeAck           MessageType = "ack"
	TypeConnected     MessageType = "connected"
	TypeLobbyList     MessageType = "lobby-list"
	TypeAccepted      MessageType = "accepted"
	TypeRejected      MessageType = "rejected"
	TypeGuestAccepted MessageType = "guest-accepted"
	TypeViewerReady   MessageType = "viewer-ready"
	TypeKicked        MessageType = "kicked"
	TypeMute          MessageType = "mute"
	TypeOverlay       MessageType = "overlay"
	TypeStartForward  MessageType = "start-forward"
	TypePrepareViewer MessageType = "prepare-viewer"
	TypeHostLeft      MessageType = "host-left"
	TypeViewerLeft    MessageType = "viewer-left"
)

// Command is a host-command verb
type Command string

const (
	CommandKick         Command = "kick"
	CommandMute         Command = "mute"
	CommandOverlay      Command = "overlay"
	CommandStartForward Command = "start-forward"
)

// Error codes returned in acks
const (
	ErrCodeRoomNotFound  = "room-not-found"
	ErrCodeInvalidRole   = "invalid-role"
	ErrCodeAlreadyJoined = "already-joined"
)

var ErrUnknownType = errors.New("unknown message type")

// InboundMessage is a raw frame read from a client.
// A non-zero ID asks for an ack carrying the same ID.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is a frame written to a client
type Envelope struct {
	Type    MessageType `json:"type"`
	ID      uint64      `json:"id,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// Request is one of the typed client requests below
type Request interface {
	Kind() MessageType
}

type CreateRoomRequest struct{}

type JoinRequest struct {
	Role Role   `json:"role"`
	Room string `json:"room"`
	Name string `json:"name"`
}

type AcceptGuestRequest struct {
	Room    string `json:"room"`
	GuestID string `json:"guestId"`
}

type RejectGuestRequest struct {
	Room    string `json:"room"`
	GuestID string `json:"guestId"`
}

// SignalRequest carries an opaque negotiation payload; Data is never inspected
type SignalRequest struct {
	To   string          `json:"to"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type HostCommandRequest struct {
	Room    string          `json:"room"`
	Cmd     Command         `json:"cmd"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (CreateRoomRequest) Kind() MessageType  { return TypeCreateRoom }
func (JoinRequest) Kind() MessageType        { return TypeJoin }
func (AcceptGuestRequest) Kind() MessageType { return TypeAcceptGuest }
func (RejectGuestRequest) Kind() MessageType { return TypeRejectGuest }
func (SignalRequest) Kind() MessageType      { return TypeSignal }
func (HostCommandRequest) Kind() MessageType { return TypeHostCommand }

// DecodeRequest turns a raw frame into its typed request
func DecodeRequest(msg InboundMessage) (Request, error) {
	var req Request
	switch msg.Type {
	case TypeCreateRoom:
		return CreateRoomRequest{}, nil
	case TypeJoin:
		var r JoinRequest
		if err := decodePayload(msg.Payload, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeAcceptGuest:
		var r AcceptGuestRequest
		if err := decodePayload(msg.Payload, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeRejectGuest:
		var r RejectGuestRequest
		if err := decodePayload(msg.Payload, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeSignal:
		var r SignalRequest
		if err := decodePayload(msg.Payload, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeHostCommand:
		var r HostCommandRequest
		if err := decodePayload(msg.Payload, &r); err != nil {
			return nil, err
		}
		req = r
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return req, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// JoinAck answers a join request
type JoinAck struct {
	OK     bool   `json:"ok,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ConnectedPayload struct {
	ID string `json:"id"`
}

type AcceptedPayload struct {
	Room   string `json:"room"`
	HostID string `json:"hostId"`
}

type RejectedPayload struct {
	Reason string `json:"reason"`
}

type GuestAcceptedPayload struct {
	GuestID string `json:"guestId"`
}

type ViewerReadyPayload struct {
	ViewerID string `json:"viewerId"`
}

// SignalPayload is a relayed signal tagged with its sender
type SignalPayload struct {
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type KickedPayload struct {
	Reason string `json:"reason"`
}

// StartForwardPayload uses nil for empty slots so clients see null
type StartForwardPayload struct {
	ViewerID *string `json:"viewerId"`
	GuestID  *string `json:"guestId"`
}

type PrepareViewerPayload struct {
	Room   string `json:"room"`
	HostID string `json:"hostId"`
}
