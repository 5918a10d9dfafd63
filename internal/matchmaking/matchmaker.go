package matchmaking

import (
	"fmt"
	"sync"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/room"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supported game types.
const (
	GameTypeVersusPlayer = "versus_player"
	GameTypeVersusAI     = "versus_ai"
)

// Entry is one player waiting for a match.
type Entry struct {
	PlayerID   string
	Username   string
	Conn       room.Conn
	Deck       *catalog.DeckDescriptor
	AgentDeck  string // versus_ai: requested opponent deck name
	CustomGame bool   // private lobby: pairs only with other custom entries
}

type queue struct {
	name     string
	gameType string
	custom   bool
	waiting  []*Entry
}

func queueKey(name, gameType string, custom bool) string {
	key := name + "|" + gameType
	if custom {
		key += "|custom"
	}
	return key
}

const maxQueueNameLen = 64

// isValidQueueName accepts compact names of letters, digits, dashes and
// underscores.
func isValidQueueName(name string) bool {
	if name == "" || len(name) > maxQueueNameLen {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// Matchmaker pairs players out of named queues. versus_player entries wait
// for a second player; versus_ai entries start a room against an automated
// agent immediately.
type Matchmaker struct {
	logger *zap.Logger
	rooms  *room.Manager
	decks  *agent.DeckSource

	mu     sync.Mutex
	queues map[string]*queue
}

// New builds a matchmaker over the given room manager and agent deck source.
func New(logger *zap.Logger, rooms *room.Manager, decks *agent.DeckSource) *Matchmaker {
	return &Matchmaker{
		logger: logger,
		rooms:  rooms,
		decks:  decks,
		queues: make(map[string]*queue),
	}
}

// Join enters a player into a queue. The returned room is non-nil when the
// join completed a match (always, for versus_ai). The player's deck must
// already be validated.
func (m *Matchmaker) Join(queueName, gameType string, entry *Entry) (*room.Room, error) {
	if !isValidQueueName(queueName) {
		return nil, fmt.Errorf("invalid queue name %q", queueName)
	}
	if _, seated := m.rooms.RoomForPlayer(entry.PlayerID); seated {
		return nil, fmt.Errorf("player %s is already in a match", entry.PlayerID)
	}

	switch gameType {
	case GameTypeVersusAI:
		return m.startVersusAI(queueName, entry)
	case GameTypeVersusPlayer:
		return m.joinVersusPlayer(queueName, entry)
	}
	return nil, fmt.Errorf("unknown game type %q", gameType)
}

func (m *Matchmaker) startVersusAI(queueName string, entry *Entry) (*room.Room, error) {
	agentDeck, err := m.decks.Resolve(entry.AgentDeck)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent deck: %w", err)
	}
	seats := []room.SeatConfig{
		{PlayerID: entry.PlayerID, Username: entry.Username, Deck: entry.Deck, Conn: entry.Conn},
		{PlayerID: "agent_" + uuid.NewString(), Username: "ai_opponent", Deck: agentDeck},
	}
	return m.rooms.CreateRoom(queueName, GameTypeVersusAI, seats)
}

func (m *Matchmaker) joinVersusPlayer(queueName string, entry *Entry) (*room.Room, error) {
	m.mu.Lock()
	key := queueKey(queueName, GameTypeVersusPlayer, entry.CustomGame)
	q, ok := m.queues[key]
	if !ok {
		q = &queue{name: queueName, gameType: GameTypeVersusPlayer, custom: entry.CustomGame}
		m.queues[key] = q
	}
	// Re-joining a queue replaces the previous entry.
	m.removeLocked(entry.PlayerID)
	q.waiting = append(q.waiting, entry)
	if len(q.waiting) < 2 {
		m.mu.Unlock()
		m.logger.Info("player queued",
			zap.String("queue", queueName),
			zap.String("player_id", entry.PlayerID),
		)
		return nil, nil
	}
	first, second := q.waiting[0], q.waiting[1]
	q.waiting = q.waiting[2:]
	m.mu.Unlock()

	seats := []room.SeatConfig{
		{PlayerID: first.PlayerID, Username: first.Username, Deck: first.Deck, Conn: first.Conn},
		{PlayerID: second.PlayerID, Username: second.Username, Deck: second.Deck, Conn: second.Conn},
	}
	return m.rooms.CreateRoom(queueName, GameTypeVersusPlayer, seats)
}

// Leave removes a player from every queue. It is safe to call for players
// that never queued.
func (m *Matchmaker) Leave(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(playerID)
}

func (m *Matchmaker) removeLocked(playerID string) {
	for _, q := range m.queues {
		for i, entry := range q.waiting {
			if entry.PlayerID == playerID {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				break
			}
		}
	}
}

// QueueInfo summarizes every queue for the server-info broadcast.
func (m *Matchmaker) QueueInfo() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := make([]map[string]any, 0, len(m.queues))
	for _, q := range m.queues {
		info = append(info, map[string]any{
			"queue_name":      q.name,
			"game_type":       q.gameType,
			"custom_game":     q.custom,
			"players_waiting": len(q.waiting),
		})
	}
	return info
}
