// Package registry owns the room records of a relay process.
//
// A Registry is not safe for concurrent use. The signaling hub goroutine is
// its only caller, which serializes every mutation.
package registry

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/mossy-p/webrtc-relay/internal/models"
)

const roomIDLength = 8

var ErrRoomNotFound = errors.New("room not found")

// Registry maps room IDs to room records
type Registry struct {
	rooms map[string]*models.Room
	newID func() string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		rooms: make(map[string]*models.Room),
		newID: generateRoomID,
	}
}

// CreateRoom inserts an empty room under a fresh ID and returns the ID
func (r *Registry) CreateRoom() string {
	id := r.newID()
	// Keep generating until we find one that's not in use
	for r.rooms[id] != nil {
		id = r.newID()
	}

	r.rooms[id] = &models.Room{ID: id, Lobby: []models.LobbyEntry{}}
	return id
}

// GetRoom looks a room up by ID
func (r *Registry) GetRoom(id string) (*models.Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// DeleteRoom removes a room; deleting an unknown ID is a no-op
func (r *Registry) DeleteRoom(id string) {
	delete(r.rooms, id)
}

// Len returns the number of live rooms
func (r *Registry) Len() int {
	return len(r.rooms)
}

// Snapshot copies every live room, ordered by ID
func (r *Registry) Snapshot() []models.RoomSnapshot {
	out := make([]models.RoomSnapshot, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// generateRoomID returns a short shareable token
func generateRoomID() string {
	return uuid.New().String()[:roomIDLength]
}
