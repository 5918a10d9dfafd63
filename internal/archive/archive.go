package archive

import (
	"context"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/game"
)

// PlayerSummary identifies one seat in an archived match.
type PlayerSummary struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	OshiID   string `json:"oshi_id"`
	IsAgent  bool   `json:"is_agent"`
}

// Record is the full account of a finished match: every event the engine
// emitted and every action it received, in order.
type Record struct {
	RoomID    string             `json:"room_id"`
	QueueName string             `json:"queue_name,omitempty"`
	GameType  string             `json:"game_type"`
	Players   []PlayerSummary    `json:"players"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at"`
	WinnerID  string             `json:"winner_id"`
	Reason    string             `json:"reason"`
	Turns     int                `json:"turns"`
	Events    []game.Event       `json:"events"`
	Messages  []game.GameMessage `json:"messages"`
}

// Sink persists finished match records. Implementations must be safe for
// concurrent use; rooms save from their own goroutines.
type Sink interface {
	Save(ctx context.Context, rec *Record) error
}

// Discard is a Sink that drops every record.
type Discard struct{}

func (Discard) Save(context.Context, *Record) error { return nil }
