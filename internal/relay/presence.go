package relay

import "github.com/mossy-p/webrtc-relay/internal/models"

// Presence observes membership changes. Implementations are called from the
// hub goroutine and must not block.
type Presence interface {
	RoomCreated(roomID string)
	MemberJoined(roomID, connID string, role models.Role)
	MemberLeft(roomID, connID string)
	RoomDeleted(roomID string)
}

// NopPresence discards every event
type NopPresence struct{}

func (NopPresence) RoomCreated(string)                       {}
func (NopPresence) MemberJoined(string, string, models.Role) {}
func (NopPresence) MemberLeft(string, string)                {}
func (NopPresence) RoomDeleted(string)                       {}
