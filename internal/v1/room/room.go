// Package room implements the per-room concurrency core: the phase state
// machine, the agent orchestration gate, the broadcast fabric, and the
// registry that owns room lifecycle.
package room

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
	"k8s.io/utils/set"

	"github.com/spot-the-bot/backend/internal/v1/agents"
	"github.com/spot-the-bot/backend/internal/v1/bus"
	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// Connection is one client's attachment to a room. Send must never block;
// the transport layer buffers and drops on overflow.
type Connection interface {
	PlayerID() string
	Send(data []byte)
	Close()
}

// Config carries the pacing knobs every room shares.
type Config struct {
	DiscussionTime              time.Duration
	VotingTime                  time.Duration
	RoundsToWin                 int
	MessageCooldown             time.Duration
	MaxConcurrentAgentResponses int
	TypingDelay                 time.Duration
	ProactiveInterval           time.Duration
	CompletedLinger             time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiscussionTime <= 0 {
		c.DiscussionTime = 180 * time.Second
	}
	if c.VotingTime <= 0 {
		c.VotingTime = 60 * time.Second
	}
	if c.RoundsToWin <= 0 {
		c.RoundsToWin = 3
	}
	if c.MessageCooldown <= 0 {
		c.MessageCooldown = 20 * time.Second
	}
	if c.MaxConcurrentAgentResponses <= 0 {
		c.MaxConcurrentAgentResponses = 2
	}
	if c.TypingDelay <= 0 {
		c.TypingDelay = 2 * time.Second
	}
	if c.ProactiveInterval <= 0 {
		c.ProactiveInterval = 10 * time.Second
	}
	if c.CompletedLinger <= 0 {
		c.CompletedLinger = 60 * time.Second
	}
	return c
}

// Room is one bounded game session. The mutex guards every field below it;
// the processing set enforces single-flight generation per agent.
type Room struct {
	Code         string
	Name         string
	MaxHumans    int
	TotalPlayers int
	CreatedAt    time.Time

	cfg      Config
	clk      clock.WithTicker
	provider agents.Provider
	bus      *bus.Service

	mu         sync.Mutex
	status     game.Status
	creatorID  string
	state      *game.State
	slots      *game.SlotAllocator
	processing set.Set[string]
	conns      map[Connection]struct{}
	started    bool
	terminated bool
	votingOpen bool
	rng        *rand.Rand

	// trigger carries decision-pass requests into the discussion loop; the
	// value is an agent id to exclude from the pass ("" for none).
	trigger    chan string
	votingDone chan struct{}

	onEmpty     func(code string)
	onCompleted func(code string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Semaphore bounding concurrent mirror publishes.
	mirrorChan chan struct{}
}

func newRoom(ctx context.Context, code, name string, maxHumans, totalPlayers int,
	cfg Config, clk clock.WithTicker, provider agents.Provider, busService *bus.Service,
	rng *rand.Rand, onEmpty, onCompleted func(code string)) *Room {

	numAI := totalPlayers - maxHumans
	numbers := game.DrawNumbers(totalPlayers, rng)
	agentNumbers := numbers[:numAI]
	humanPool := numbers[numAI:]

	r := &Room{
		Code:         code,
		Name:         name,
		MaxHumans:    maxHumans,
		TotalPlayers: totalPlayers,
		CreatedAt:    clk.Now(),
		cfg:          cfg.withDefaults(),
		clk:          clk,
		provider:     provider,
		bus:          busService,
		status:       game.StatusWaiting,
		state:        game.NewState(agentNumbers, rng),
		slots:        game.NewSlotAllocator(humanPool),
		processing:   set.New[string](),
		conns:        make(map[Connection]struct{}),
		rng:          rng,
		trigger:      make(chan string, 8),
		onEmpty:      onEmpty,
		onCompleted:  onCompleted,
		mirrorChan:   make(chan struct{}, 16),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	return r
}

// Status returns the room lifecycle state.
func (r *Room) Status() game.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CreatorID returns the first human to have joined, or "".
func (r *Room) CreatorID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creatorID
}

// HumanIDs returns the ids of current human players sorted by number.
func (r *Room) HumanIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humanIDsLocked()
}

func (r *Room) humanIDsLocked() []string {
	var out []string
	for _, p := range r.state.Humans() {
		out = append(out, p.ID)
	}
	return out
}

// AddConnection registers a connection. Clients that attach after the match
// started receive a catch-up so their first events are always
// player_list, topic, phase.
func (r *Room) AddConnection(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminated {
		conn.Send(marshalEvent(Event{Type: EventRoomTerminated, Payload: RoomTerminatedPayload{Reason: "room closed"}}))
		conn.Close()
		return
	}

	r.conns[conn] = struct{}{}

	if r.status != game.StatusWaiting && r.state.Phase != game.PhaseLobby {
		r.sendToConnLocked(conn, Event{Type: EventPlayerList, Payload: r.playerListLocked()})
		r.sendToConnLocked(conn, Event{Type: EventTopic, Payload: TopicPayload{Topic: r.state.Topic, Round: r.state.Round}})
		r.sendToConnLocked(conn, Event{Type: EventPhase, Payload: PhasePayload{Phase: r.state.Phase, Round: r.state.Round}})
	}
}

// RemoveConnection detaches a connection. Players stay in the game; a
// dropped socket is not a leave.
func (r *Room) RemoveConnection(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
}

// HumanTyping relays an advisory human typing hint to the other players.
func (r *Room) HumanTyping(playerID, state string) {
	if state != TypingStart && state != TypingStop {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.state.Players[playerID]; !ok || p.Role != game.RoleHuman {
		return
	}
	r.broadcastLocked(Event{Type: EventTyping, Payload: TypingPayload{PlayerID: playerID, State: state}})
}

// --- broadcast fabric ---

func marshalEvent(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal event", zap.String("event", ev.Type), zap.Error(err))
		return nil
	}
	return data
}

// broadcastLocked fans an event out to every connection and mirrors it to
// the bus. Caller must hold r.mu; channel enqueues never block, so holding
// the lock across the fan-out is what guarantees per-connection ordering.
func (r *Room) broadcastLocked(ev Event) {
	data := marshalEvent(ev)
	if data == nil {
		return
	}
	for conn := range r.conns {
		conn.Send(data)
	}
	metrics.EventsBroadcast.WithLabelValues(ev.Type).Inc()
	r.mirrorLocked(ev)
}

// sendToConnLocked delivers an event to a single connection.
func (r *Room) sendToConnLocked(conn Connection, ev Event) {
	if data := marshalEvent(ev); data != nil {
		conn.Send(data)
	}
}

// sendToPlayerLocked delivers an event to every connection of one player.
func (r *Room) sendToPlayerLocked(playerID string, ev Event) {
	data := marshalEvent(ev)
	if data == nil {
		return
	}
	for conn := range r.conns {
		if conn.PlayerID() == playerID {
			conn.Send(data)
		}
	}
}

// mirrorLocked publishes the event to the Redis mirror without blocking the
// game loop; publishes beyond the in-flight cap are dropped.
func (r *Room) mirrorLocked(ev Event) {
	if r.bus == nil {
		return
	}
	select {
	case r.mirrorChan <- struct{}{}:
		r.wg.Add(1)
		go func() {
			defer func() {
				<-r.mirrorChan
				r.wg.Done()
			}()
			if err := r.bus.Publish(context.Background(), r.Code, ev.Type, ev.Payload); err != nil {
				logging.Warn(context.Background(), "event mirror publish failed",
					zap.String("room_code", r.Code), zap.String("event", ev.Type), zap.Error(err))
			}
		}()
	default:
		logging.Warn(r.ctx, "dropping mirror publish, queue full", zap.String("room_code", r.Code))
	}
}

func (r *Room) playerListLocked() PlayerListPayload {
	var players []PlayerInfo
	for _, p := range r.state.PlayersByNumber() {
		players = append(players, PlayerInfo{ID: p.ID, Eliminated: p.Eliminated, Voted: p.Voted})
	}
	return PlayerListPayload{Players: players}
}

// terminate closes the room: cancels all in-flight tasks, notifies every
// connection exactly once, and releases resources. Idempotent.
func (r *Room) terminate(reason string) {
	r.mu.Lock()
	if r.terminated {
		r.mu.Unlock()
		return
	}
	r.terminated = true
	r.cancel()

	logging.Info(r.ctx, "terminating room", zap.String("room_code", r.Code), zap.String("reason", reason))

	r.broadcastLocked(Event{Type: EventRoomTerminated, Payload: RoomTerminatedPayload{Reason: reason}})

	targets := make([]Connection, 0, len(r.conns))
	for conn := range r.conns {
		targets = append(targets, conn)
	}
	r.conns = make(map[Connection]struct{})
	r.mu.Unlock()

	for _, conn := range targets {
		conn.Close()
	}

	metrics.RoomParticipants.DeleteLabelValues(r.Code)
	r.wg.Wait()
}
