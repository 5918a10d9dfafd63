package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/archive"
	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeatConfig describes one participant joining a new room. A nil Conn seats
// an automated agent instead of a human.
type SeatConfig struct {
	PlayerID string
	Username string
	Deck     *catalog.DeckDescriptor
	Conn     Conn
}

// Manager owns every live room and reclaims the ones nobody is playing in.
type Manager struct {
	logger  *zap.Logger
	catalog *catalog.Catalog
	sink    archive.Sink

	idleTimeout   time.Duration
	checkInterval time.Duration

	mu       sync.RWMutex
	rooms    map[string]*Room
	byPlayer map[string]*Room

	seedFn func() int64
}

// NewManager builds a room manager. idleTimeout is how long a room may go
// without actions before reclamation; checkInterval is the sweep cadence.
func NewManager(logger *zap.Logger, cat *catalog.Catalog, sink archive.Sink, idleTimeout, checkInterval time.Duration) *Manager {
	return &Manager{
		logger:        logger,
		catalog:       cat,
		sink:          sink,
		idleTimeout:   idleTimeout,
		checkInterval: checkInterval,
		rooms:         make(map[string]*Room),
		byPlayer:      make(map[string]*Room),
		seedFn:        func() int64 { return time.Now().UnixNano() },
	}
}

// CreateRoom builds the engine and room for a match, registers it, and
// starts play. Decks must already be validated.
func (m *Manager) CreateRoom(queueName, gameType string, seats []SeatConfig) (*Room, error) {
	infos := make([]game.PlayerInfo, 0, len(seats))
	for _, seat := range seats {
		infos = append(infos, game.PlayerInfo{
			PlayerID: seat.PlayerID,
			Username: seat.Username,
			Deck:     seat.Deck,
		})
	}
	roomID := uuid.NewString()
	seed := m.seedFn()
	engine, err := game.NewEngine(m.logger, m.catalog, gameType, infos, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create match engine: %w", err)
	}

	r := &Room{
		ID:        roomID,
		QueueName: queueName,
		GameType:  gameType,
		logger:    m.logger,
		engine:    engine,
		sink:      m.sink,
		onClose:   m.removeRoom,
	}
	for _, seat := range seats {
		st := &seatState{
			playerID:  seat.PlayerID,
			username:  seat.Username,
			conn:      seat.Conn,
			connected: seat.Conn != nil,
		}
		if seat.Conn == nil {
			st.agent = agent.New(seat.PlayerID, seed+1, m.logger)
		}
		r.seats = append(r.seats, st)
	}

	m.mu.Lock()
	m.rooms[roomID] = r
	for _, seat := range seats {
		if seat.Conn != nil {
			m.byPlayer[seat.PlayerID] = r
		}
	}
	m.mu.Unlock()

	m.logger.Info("room created",
		zap.String("room_id", roomID),
		zap.String("queue", queueName),
		zap.String("game_type", gameType),
		zap.Int("seats", len(seats)),
	)
	r.Start()
	return r, nil
}

// RoomForPlayer returns the live room a player is seated in.
func (m *Manager) RoomForPlayer(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byPlayer[playerID]
	return r, ok
}

// GetRoom returns a live room by id.
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// HandleDisconnect forfeits the departing player's match, if any.
func (m *Manager) HandleDisconnect(playerID string) {
	if r, ok := m.RoomForPlayer(playerID); ok {
		r.HandleDisconnect(playerID)
	}
}

func (m *Manager) removeRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(m.rooms, roomID)
	for playerID, owner := range m.byPlayer {
		if owner == r {
			delete(m.byPlayer, playerID)
		}
	}
	m.logger.Info("room removed", zap.String("room_id", roomID))
}

// Run sweeps for idle rooms until the context ends, then terminates every
// remaining room.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case now := <-ticker.C:
			m.reclaimIdle(now)
		}
	}
}

func (m *Manager) reclaimIdle(now time.Time) {
	m.mu.RLock()
	stale := make([]*Room, 0)
	for _, r := range m.rooms {
		if r.IdleFor(now) > m.idleTimeout {
			stale = append(stale, r)
		}
	}
	m.mu.RUnlock()
	for _, r := range stale {
		m.logger.Warn("reclaiming idle room",
			zap.String("room_id", r.ID),
			zap.Duration("idle", r.IdleFor(now)),
		)
		r.TimeOut()
	}
}

// Shutdown terminates every live room.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	live := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		live = append(live, r)
	}
	m.mu.RUnlock()
	for _, r := range live {
		r.Terminate(game.ReasonServerError)
	}
}
