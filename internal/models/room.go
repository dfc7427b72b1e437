package models

// Role is the part a connection plays in a room
type Role string

const (
	RoleHost   Role = "host"
	RoleGuest  Role = "guest"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleGuest, RoleViewer:
		return true
	}
	return false
}

// LobbyEntry is a guest waiting for the host's admission decision
type LobbyEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	When int64  `json:"when"` // Unix milliseconds
}

// Room holds the membership of a single session.
// Empty strings mean the slot is unoccupied.
type Room struct {
	ID       string
	HostID   string
	GuestID  string
	ViewerID string
	Lobby    []LobbyEntry
}

// InLobby reports whether connID is still waiting in the lobby
func (r *Room) InLobby(connID string) bool {
	for _, e := range r.Lobby {
		if e.ID == connID {
			return true
		}
	}
	return false
}

// RemoveFromLobby drops connID from the lobby, keeping order.
// It returns false when there was nothing to remove.
func (r *Room) RemoveFromLobby(connID string) bool {
	for i, e := range r.Lobby {
		if e.ID == connID {
			r.Lobby = append(r.Lobby[:i:i], r.Lobby[i+1:]...)
			return true
		}
	}
	return false
}

// LobbySnapshot returns a copy safe to hand to the transport
func (r *Room) LobbySnapshot() []LobbyEntry {
	out := make([]LobbyEntry, len(r.Lobby))
	copy(out, r.Lobby)
	return out
}

// RoomSnapshot is the read-only view served over HTTP
type RoomSnapshot struct {
	Room     string       `json:"room"`
	HostID   string       `json:"hostId,omitempty"`
	GuestID  string       `json:"guestId,omitempty"`
	ViewerID string       `json:"viewerId,omitempty"`
	Lobby    []LobbyEntry `json:"lobby"`
}

// Snapshot copies the room into its HTTP view
func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Room:     r.ID,
		HostID:   r.HostID,
		GuestID:  r.GuestID,
		ViewerID: r.ViewerID,
		Lobby:    r.LobbySnapshot(),
	}
}

// RoomSummary is the public room info; it exposes no connection ids
type RoomSummary struct {
	Room      string `json:"room"`
	HasHost   bool   `json:"hasHost"`
	HasGuest  bool   `json:"hasGuest"`
	HasViewer bool   `json:"hasViewer"`
	Lobby     int    `json:"lobby"`
}

// Summary reduces the room to its public info
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Room:      r.ID,
		HasHost:   r.HostID != "",
		HasGuest:  r.GuestID != "",
		HasViewer: r.ViewerID != "",
		Lobby:     len(r.Lobby),
	}
}

// CreateRoomResponse is the response for creating a room
type CreateRoomResponse struct {
	Room string `json:"room"`
}
