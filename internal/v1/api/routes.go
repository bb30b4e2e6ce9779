package api

import (
	"github.com/gin-gonic/gin"

	"github.com/spot-the-bot/backend/internal/v1/health"
	"github.com/spot-the-bot/backend/internal/v1/ratelimit"
)

// RegisterRoutes wires the REST surface onto the router. The WebSocket
// route is registered separately because it bypasses the JSON middleware
// stack.
func RegisterRoutes(router *gin.Engine, h *Handler, hh *health.Handler, rl *ratelimit.RateLimiter) {
	router.GET("/health", hh.Liveness)
	router.GET("/health/live", hh.Liveness)
	router.GET("/health/ready", hh.Readiness)
	router.GET("/config", h.PublicConfig)

	rooms := router.Group("/api/rooms")
	rooms.Use(rl.RoomsMiddleware())
	{
		rooms.POST("/create", h.CreateRoom)
		rooms.GET("/list", h.ListRooms)
		rooms.GET("/:code/info", h.RoomInfo)
		rooms.POST("/:code/join", h.JoinRoom)
		rooms.POST("/:code/leave", h.LeaveRoom)
		rooms.POST("/:code/message", h.PostMessage)
		rooms.POST("/:code/vote", h.PostVote)
		rooms.GET("/:code/state", h.RoomState)
	}
}
