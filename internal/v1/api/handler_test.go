package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"github.com/spot-the-bot/backend/internal/v1/agents"
	"github.com/spot-the-bot/backend/internal/v1/auth"
	"github.com/spot-the-bot/backend/internal/v1/config"
	"github.com/spot-the-bot/backend/internal/v1/room"
)

func newTestRouter(t *testing.T) (*gin.Engine, *room.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := agents.NewClient(&agents.CannedCompleter{}, agents.Options{})
	reg := room.NewRegistry(room.Config{
		DiscussionTime: time.Hour,
		VotingTime:     time.Hour,
	}, clock.RealClock{}, provider, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.Shutdown(ctx)
	})

	cfg := &config.Config{
		NumAIPlayers:    3,
		DiscussionTime:  time.Hour,
		VotingTime:      time.Hour,
		RoundsToWin:     3,
		MessageCooldown: 20 * time.Second,
		AIProvider:      config.ProviderFallback,
		AIModelName:     "canned",
	}
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	router := gin.New()
	h := NewHandler(reg, cfg, tokens)

	rooms := router.Group("/api/rooms")
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
	router.GET("/config", h.PublicConfig)

	return router, reg
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func createTestRoom(t *testing.T, router *gin.Engine, maxPlayers int) string {
	t.Helper()
	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/create", gin.H{
		"room_name":  "test room",
		"max_humans": maxPlayers,
	})
	require.Equal(t, http.StatusOK, w.Code)
	return body["room_code"].(string)
}

func TestCreateRoom(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/create", gin.H{
		"room_name":  "friday night",
		"max_humans": 2,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, body["room_code"])
	assert.Equal(t, "friday night", body["room_name"])
	assert.Equal(t, float64(2), body["max_humans"])
	// total_players defaults to max_humans + configured agent count.
	assert.Equal(t, float64(5), body["total_players"])
}

func TestCreateRoom_InvalidShape(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/create", gin.H{
		"max_humans": 9,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidArgument", body["code"])
}

func TestRoomInfo(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)

	w, body := doJSON(t, router, http.MethodGet, "/api/rooms/"+code+"/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, code, body["room_code"])
	assert.Equal(t, "waiting", body["status"])

	// Unknown rooms report exists=false instead of an HTTP error.
	w, body = doJSON(t, router, http.MethodGet, "/api/rooms/NOPE42/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["exists"])
}

func TestJoinRoom(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/join", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Regexp(t, `^Player \d+$`, body["player_id"])
	assert.Equal(t, false, body["can_start"])
	assert.Equal(t, float64(2), body["max_humans"])
	assert.NotEmpty(t, body["session_token"])
}

func TestJoinRoom_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/ZZZZZZ/join", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["code"])
}

func TestLeaveRoom_CreatorTerminates(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)

	_, joinBody := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/join", nil)
	playerID := joinBody["player_id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/leave", gin.H{"player_id": playerID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "terminated", body["action"])

	w, body = doJSON(t, router, http.MethodGet, "/api/rooms/"+code+"/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["exists"])
}

func TestPostMessage_WrongPhase(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)

	_, joinBody := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/join", nil)
	playerID := joinBody["player_id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/message",
		gin.H{"player_id": playerID, "text": "hello?"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PhaseViolation", body["code"])
}

func TestPostVote_WrongPhase(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)

	_, joinBody := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/join", nil)
	playerID := joinBody["player_id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/vote",
		gin.H{"player_id": playerID, "target_id": "Player 1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PhaseViolation", body["code"])
}

func TestRoomState(t *testing.T) {
	router, _ := newTestRouter(t)
	code := createTestRoom(t, router, 2)
	doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/join", nil)

	w, body := doJSON(t, router, http.MethodGet, "/api/rooms/"+code+"/state", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code, body["room_code"])
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, float64(5), body["total_players"])
	assert.Len(t, body["current_humans"], 1)
	// Roles stay hidden until game over.
	assert.NotContains(t, w.Body.String(), `"role"`)
}

func TestListRooms(t *testing.T) {
	router, _ := newTestRouter(t)
	createTestRoom(t, router, 2)
	createTestRoom(t, router, 2)

	w, body := doJSON(t, router, http.MethodGet, "/api/rooms/list?page=1&per_page=1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(2), body["total_pages"])
	assert.Len(t, body["rooms"], 1)
}

func TestPublicConfig(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/config", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["num_ai_players"])
	assert.Equal(t, float64(3600), body["discussion_time"])
	assert.NotContains(t, body, "llm_api_key")
}
