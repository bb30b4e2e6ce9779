// Package api exposes the REST surface: room lifecycle, chat, voting, and
// state polling. The WebSocket carries events out; mutations come in here.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/auth"
	"github.com/spot-the-bot/backend/internal/v1/config"
	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/room"
)

// Handler carries the API dependencies.
type Handler struct {
	registry *room.Registry
	cfg      *config.Config
	tokens   *auth.TokenIssuer
}

// NewHandler creates the REST handler.
func NewHandler(registry *room.Registry, cfg *config.Config, tokens *auth.TokenIssuer) *Handler {
	return &Handler{registry: registry, cfg: cfg, tokens: tokens}
}

// respondError maps a domain error onto the wire taxonomy.
func respondError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, game.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "InvalidArgument"
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrUnknownPlayer):
		status, code = http.StatusNotFound, "NotFound"
	case errors.Is(err, game.ErrRoomFull):
		status, code = http.StatusConflict, "RoomFull"
	case errors.Is(err, game.ErrRoomInProgress):
		status, code = http.StatusConflict, "RoomInProgress"
	case errors.Is(err, game.ErrPhaseViolation):
		status, code = http.StatusConflict, "PhaseViolation"
	default:
		logging.Error(c.Request.Context(), "unhandled API error", zap.Error(err))
		status, code = http.StatusInternalServerError, "Internal"
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

type createRoomRequest struct {
	RoomName     string `json:"room_name"`
	MaxHumans    int    `json:"max_humans"`
	TotalPlayers int    `json:"total_players"`
}

// CreateRoom handles POST /api/rooms/create. total_players defaults to
// max_humans plus the configured agent count.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, game.ErrInvalidArgument)
		return
	}

	if req.TotalPlayers == 0 {
		req.TotalPlayers = req.MaxHumans + h.cfg.NumAIPlayers
	}

	r, err := h.registry.CreateRoom(req.RoomName, req.MaxHumans, req.TotalPlayers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_code":     r.Code,
		"room_name":     r.Name,
		"max_humans":    r.MaxHumans,
		"total_players": r.TotalPlayers,
	})
}

// ListRooms handles GET /api/rooms/list.
func (h *Handler) ListRooms(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	rooms, totalPages := h.registry.List(page, perPage)
	c.JSON(http.StatusOK, gin.H{
		"rooms":       rooms,
		"page":        page,
		"total_pages": totalPages,
	})
}

// RoomInfo handles GET /api/rooms/:code/info. A missing room is reported
// through exists=false, not an HTTP error; the lobby polls this endpoint.
func (h *Handler) RoomInfo(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exists":         true,
		"room_code":      r.Code,
		"room_name":      r.Name,
		"status":         r.Status(),
		"current_humans": r.HumanIDs(),
		"max_humans":     r.MaxHumans,
		"total_players":  r.TotalPlayers,
	})
}

// JoinRoom handles POST /api/rooms/:code/join.
func (h *Handler) JoinRoom(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := r.Join()
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(code, res.PlayerID)
	if err != nil {
		logging.Warn(c.Request.Context(), "failed to issue session token", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"player_id":      res.PlayerID,
		"can_start":      res.CanStart,
		"current_humans": res.CurrentHumans,
		"max_humans":     res.MaxHumans,
		"session_token":  token,
	})
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

// LeaveRoom handles POST /api/rooms/:code/leave.
func (h *Handler) LeaveRoom(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" {
		respondError(c, game.ErrInvalidArgument)
		return
	}

	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		respondError(c, err)
		return
	}

	action, err := r.Leave(req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action})
}

type messageRequest struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

// PostMessage handles POST /api/rooms/:code/message.
func (h *Handler) PostMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" {
		respondError(c, game.ErrInvalidArgument)
		return
	}

	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := r.HumanMessage(req.PlayerID, strings.TrimSpace(req.Text)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type voteRequest struct {
	PlayerID string `json:"player_id"`
	TargetID string `json:"target_id"`
}

// PostVote handles POST /api/rooms/:code/vote.
func (h *Handler) PostVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" || req.TargetID == "" {
		respondError(c, game.ErrInvalidArgument)
		return
	}

	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := r.HumanVote(req.PlayerID, req.TargetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RoomState handles GET /api/rooms/:code/state. The snapshot backs polling
// clients and reconnect catch-up.
func (h *Handler) RoomState(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	r, err := h.registry.Get(code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// PublicConfig handles GET /config.
func (h *Handler) PublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Public())
}
