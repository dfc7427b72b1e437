package relay

import (
	"errors"

	"github.com/mossy-p/webrtc-relay/internal/registry"
)

// Only ErrRoomNotFound, ErrInvalidRole and ErrAlreadyJoined are surfaced to
// the caller (as join acks). The rest are returned for logging and never
// reach any client, so non-hosts learn nothing about a room's state.
var (
	ErrRoomNotFound      = registry.ErrRoomNotFound
	ErrInvalidRole       = errors.New("invalid role")
	ErrAlreadyJoined     = errors.New("connection already joined a room")
	ErrUnauthorized      = errors.New("caller is not the room host")
	ErrMissingTarget     = errors.New("target not bound")
	ErrUnknownCommand    = errors.New("unknown host command")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnknownRequest    = errors.New("unknown request")
)
