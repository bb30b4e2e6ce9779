package room

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/spot-the-bot/backend/internal/v1/agents"
	"github.com/spot-the-bot/backend/internal/v1/bus"
	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

const (
	maxHumansLimit    = 4
	totalPlayersLimit = 12
)

// Registry owns every live room. Completed rooms linger briefly so clients
// can fetch the final state, then a scheduled cleanup reaps them.
type Registry struct {
	clk      clock.WithTickerAndDelayedExecution
	provider agents.Provider
	bus      *bus.Service
	cfg      Config

	mu              sync.Mutex
	rooms           map[string]*Room
	pendingCleanups map[string]clock.Timer
	rng             *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, clk clock.WithTickerAndDelayedExecution, provider agents.Provider, busService *bus.Service) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		clk:             clk,
		provider:        provider,
		bus:             busService,
		cfg:             cfg.withDefaults(),
		rooms:           make(map[string]*Room),
		pendingCleanups: make(map[string]clock.Timer),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// CreateRoom validates the requested shape and allocates a room under a
// fresh unique code.
func (reg *Registry) CreateRoom(name string, maxHumans, totalPlayers int) (*Room, error) {
	if maxHumans < 1 || maxHumans > maxHumansLimit {
		return nil, fmt.Errorf("%w: max_humans must be between 1 and %d", game.ErrInvalidArgument, maxHumansLimit)
	}
	if totalPlayers <= maxHumans {
		return nil, fmt.Errorf("%w: total_players must exceed max_humans", game.ErrInvalidArgument)
	}
	if totalPlayers > totalPlayersLimit {
		return nil, fmt.Errorf("%w: total_players must be at most %d", game.ErrInvalidArgument, totalPlayersLimit)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := reg.generateCodeLocked()
	// Each room draws from its own source so one room's shuffle cannot be
	// inferred from another's.
	roomRNG := rand.New(rand.NewSource(reg.rng.Int63()))

	r := newRoom(reg.ctx, code, name, maxHumans, totalPlayers,
		reg.cfg, reg.clk, reg.provider, reg.bus, roomRNG,
		reg.removeRoom, reg.scheduleCompletedCleanup)
	reg.rooms[code] = r
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))

	logging.Info(reg.ctx, "room created", zap.String("room_code", code),
		zap.Int("max_humans", maxHumans), zap.Int("total_players", totalPlayers))
	return r, nil
}

func (reg *Registry) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[reg.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}

// Get looks a room up by code.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return r, nil
}

// RoomSummary is the listing view of one joinable room.
type RoomSummary struct {
	RoomCode      string    `json:"room_code"`
	RoomName      string    `json:"room_name"`
	CurrentHumans int       `json:"current_humans"`
	MaxHumans     int       `json:"max_humans"`
	TotalPlayers  int       `json:"total_players"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// List returns one page of joinable rooms, newest first, plus the total
// page count. Only waiting rooms are listed.
func (reg *Registry) List(page, perPage int) ([]RoomSummary, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	reg.mu.Lock()
	waiting := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		if r.Status() == game.StatusWaiting {
			waiting = append(waiting, r)
		}
	}
	reg.mu.Unlock()

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.After(waiting[j].CreatedAt)
	})

	totalPages := (len(waiting) + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start >= len(waiting) {
		return []RoomSummary{}, totalPages
	}
	end := start + perPage
	if end > len(waiting) {
		end = len(waiting)
	}

	out := make([]RoomSummary, 0, end-start)
	for _, r := range waiting[start:end] {
		out = append(out, RoomSummary{
			RoomCode:      r.Code,
			RoomName:      r.Name,
			CurrentHumans: len(r.HumanIDs()),
			MaxHumans:     r.MaxHumans,
			TotalPlayers:  r.TotalPlayers,
			Status:        string(r.Status()),
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, totalPages
}

// Terminate force-closes a room and removes it.
func (reg *Registry) Terminate(code, reason string) error {
	r, err := reg.Get(code)
	if err != nil {
		return err
	}
	r.terminate(reason)
	reg.removeRoom(code)
	return nil
}

// removeRoom drops a room from the registry. Used as the room's onEmpty
// callback and by Terminate; safe to call more than once.
func (reg *Registry) removeRoom(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; !ok {
		return
	}
	delete(reg.rooms, code)
	if t, ok := reg.pendingCleanups[code]; ok {
		t.Stop()
		delete(reg.pendingCleanups, code)
	}
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))
	logging.Info(reg.ctx, "room removed", zap.String("room_code", code))
}

// scheduleCompletedCleanup arranges for a finished room to be reaped after
// the linger window. The room's onCompleted callback lands here.
func (reg *Registry) scheduleCompletedCleanup(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; !ok {
		return
	}
	if _, scheduled := reg.pendingCleanups[code]; scheduled {
		return
	}
	reg.pendingCleanups[code] = reg.clk.AfterFunc(reg.cfg.CompletedLinger, func() {
		if r, err := reg.Get(code); err == nil {
			r.terminate("game completed")
		}
		reg.removeRoom(code)
	})
	logging.Info(reg.ctx, "scheduled cleanup for completed room",
		zap.String("room_code", code), zap.Duration("linger", reg.cfg.CompletedLinger))
}

// Shutdown terminates every room and waits for their goroutines, bounded by
// the caller's context.
func (reg *Registry) Shutdown(ctx context.Context) {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	for code, t := range reg.pendingCleanups {
		t.Stop()
		delete(reg.pendingCleanups, code)
	}
	reg.rooms = make(map[string]*Room)
	metrics.ActiveRooms.Set(0)
	reg.mu.Unlock()

	reg.cancel()

	done := make(chan struct{})
	go func() {
		for _, r := range rooms {
			r.terminate("server shutting down")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn(ctx, "room shutdown timed out", zap.Int("rooms", len(rooms)))
	}
}
