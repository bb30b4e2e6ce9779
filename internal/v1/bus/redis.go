// Package bus mirrors authoritative room events onto Redis pub/sub channels
// for external consumers (stats sinks, spectator feeds). Rooms never read
// from it; game state stays single-process.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// EventEnvelope is the wire container published per event.
type EventEnvelope struct {
	RoomCode string          `json:"room_code"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	SentAt   time.Time       `json:"sent_at"`
}

// Service handles all interaction with Redis.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a Redis connection and verifies it with a ping.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("Connected to Redis event mirror", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Publish mirrors one event onto the room's channel. A nil service is a
// no-op so rooms can be wired unconditionally.
func (s *Service) Publish(ctx context.Context, roomCode string, event string, payload any) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (any, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}

		env := EventEnvelope{
			RoomCode: roomCode,
			Event:    event,
			Payload:  inner,
			SentAt:   time.Now().UTC(),
		}

		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
		}

		// Channel schema: "game:room:{code}"
		channel := fmt.Sprintf("game:room:%s", roomCode)
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	return err
}

// Ping verifies connectivity for readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
