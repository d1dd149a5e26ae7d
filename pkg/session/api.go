package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// JoinRequest is the body of POST /api/v1/rooms
type JoinRequest struct {
	Room string `json:"room" binding:"required"`
}

// RegisterRoutes mounts the room control API and a health check.
func (m *Manager) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", m.handleHealth)

	rooms := router.Group("/api/v1/rooms")
	rooms.POST("", m.handleJoin)
	rooms.GET("/:room", m.handleGetRoom)
	rooms.DELETE("/:room", m.handleLeave)
}

func (m *Manager) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"rooms":     m.RoomCount(),
		"peers":     m.PeerCount(),
		"timestamp": time.Now().Unix(),
	})
}

// handleJoin handles POST /api/v1/rooms
func (m *Manager) handleJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := m.JoinRoom(c.Request.Context(), req.Room)
	if err != nil {
		m.logger.Error("failed to join room", "room", req.Room, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "room": room.Name, "peer": room.ID()})
}

// handleGetRoom handles GET /api/v1/rooms/:room
func (m *Manager) handleGetRoom(c *gin.Context) {
	room, ok := m.Room(c.Param("room"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not joined"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room.Name, "peer": room.ID(), "peers": room.Peers()})
}

// handleLeave handles DELETE /api/v1/rooms/:room
func (m *Manager) handleLeave(c *gin.Context) {
	name := c.Param("room")
	if err := m.LeaveRoom(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left", "room": name})
}
