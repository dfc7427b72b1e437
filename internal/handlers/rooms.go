package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/webrtc-relay/internal/middleware"
	"github.com/mossy-p/webrtc-relay/internal/models"
	"github.com/mossy-p/webrtc-relay/internal/relay"
)

// CreateRoom creates a room over HTTP; it is the REST form of create-room
func CreateRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var roomID string
		err := hub.Do(c.Request.Context(), func(r *relay.Relay) {
			roomID = r.CreateRoom()
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Signaling hub unavailable"})
			return
		}

		c.JSON(http.StatusCreated, models.CreateRoomResponse{Room: roomID})
	}
}

// GetRoom returns public room info. Connection IDs are never exposed.
func GetRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			summary models.RoomSummary
			lookup  error
		)
		err := hub.Do(c.Request.Context(), func(r *relay.Relay) {
			summary, lookup = r.RoomSummary(c.Param("roomId"))
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Signaling hub unavailable"})
			return
		}
		if errors.Is(lookup, relay.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": models.ErrCodeRoomNotFound})
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

// ListRooms returns the full membership of every live room (admin only)
func ListRooms(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rooms []models.RoomSnapshot
		err := hub.Do(c.Request.Context(), func(r *relay.Relay) {
			rooms = r.Rooms()
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Signaling hub unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"operator": c.GetString(middleware.ContextKeyOperator),
			"rooms":    rooms,
		})
	}
}

// Health reports liveness along with room and connection counts
func Health(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rooms, conns int
		err := hub.Do(c.Request.Context(), func(r *relay.Relay) {
			rooms = r.RoomCount()
			conns = r.Connections()
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopping"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": rooms, "connections": conns})
	}
}
