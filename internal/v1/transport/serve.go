package transport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/auth"
	"github.com/spot-the-bot/backend/internal/v1/config"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
	"github.com/spot-the-bot/backend/internal/v1/room"
)

// NewUpgrader builds the WebSocket upgrader with the configured origin
// policy. Development mode accepts any origin.
func NewUpgrader(cfg *config.Config) websocket.Upgrader {
	allowed := make(map[string]struct{})
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.DevelopmentMode {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ServeWs upgrades GET /ws/:code/:playerID and attaches the connection to
// the room. A session token, when present, must match the path; it exists
// so a reconnecting client cannot claim someone else's seat by accident.
func ServeWs(registry *room.Registry, tokens *auth.TokenIssuer, cfg *config.Config) gin.HandlerFunc {
	upgrader := NewUpgrader(cfg)

	return func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		playerID := c.Param("playerID")

		r, err := registry.Get(code)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "code": "NotFound"})
			return
		}

		if token := c.Query("token"); token != "" {
			tokenRoom, tokenPlayer, err := tokens.Verify(token)
			if err != nil || tokenRoom != code || tokenPlayer != playerID {
				c.JSON(http.StatusForbidden, gin.H{"error": "session token does not match", "code": "InvalidArgument"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Warn(c.Request.Context(), "websocket upgrade failed",
				zap.String("room_code", code), zap.Error(err))
			return
		}

		ctx := logging.WithPlayer(logging.WithRoom(c.Request.Context(), code), playerID)
		logging.Info(ctx, "websocket connected")
		metrics.IncConnection()

		client := newClient(conn, playerID, r)
		r.AddConnection(client)

		go client.writePump()
		go func() {
			client.readPump()
			metrics.DecConnection()
			logging.Info(ctx, "websocket disconnected")
		}()
	}
}
