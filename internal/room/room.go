package room

import (
	"context"
	"sync"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/archive"
	"github.com/gkqls2420/projectGM-server/internal/game"
	"go.uber.org/zap"
)

// Conn is the outbound half of a participant connection. Implementations
// must tolerate Send being called from room goroutines.
type Conn interface {
	SendJSON(v any) error
}

// archiveSaveTimeout bounds how long a room waits on the archive sink.
const archiveSaveTimeout = 10 * time.Second

// agentLoopLimit caps agent responses per drive so a misbehaving policy can
// never spin a room forever.
const agentLoopLimit = 10000

// seatState tracks one participant: a human connection or an automated
// agent, plus the cursor into the event log already delivered to it.
type seatState struct {
	playerID  string
	username  string
	conn      Conn
	agent     *agent.Agent
	cursor    int
	connected bool
}

type observerState struct {
	conn   Conn
	cursor int
}

// Room hosts exactly one match. All engine access is serialized through the
// room mutex; the engine itself is never shared.
type Room struct {
	ID        string
	QueueName string
	GameType  string

	logger *zap.Logger
	engine *game.Engine
	sink   archive.Sink

	mu           sync.Mutex
	seats        []*seatState
	observers    []*observerState
	startedAt    time.Time
	lastActivity time.Time
	closed       bool
	onClose      func(roomID string)
}

// Start deals the opening state and runs any agent decisions that come due
// immediately.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.startedAt = now
	r.lastActivity = now
	r.engine.BeginGame()
	r.flushLocked()
	r.driveAgentsLocked()
	r.finishIfOverLocked()
}

// HandleAction feeds one participant action into the engine and delivers the
// resulting events.
func (r *Room) HandleAction(playerID string, actionType game.ActionType, data game.ActionData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.lastActivity = time.Now()
	r.engine.HandleAction(playerID, actionType, data)
	r.flushLocked()
	r.driveAgentsLocked()
	r.finishIfOverLocked()
}

// HandleDisconnect forfeits the match against a departing human player.
func (r *Room) HandleDisconnect(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seat := range r.seats {
		if seat.playerID == playerID {
			seat.connected = false
			seat.conn = nil
		}
	}
	if r.closed {
		return
	}
	r.engine.Forfeit(playerID, game.ReasonForfeit)
	r.flushLocked()
	r.finishIfOverLocked()
}

// TimeOut ends an idle match. The participant the engine is waiting on is
// treated as having quit, handing the win to the opponent; a match idle with
// no pending decision is terminated outright.
func (r *Room) TimeOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if playerID, ok := r.engine.PendingDecisionPlayer(); ok {
		r.engine.Forfeit(playerID, game.ReasonTimeout)
	} else {
		r.engine.Terminate(game.ReasonTimeout)
	}
	r.flushLocked()
	r.finishIfOverLocked()
}

// Terminate force-ends the match, used by server shutdown.
func (r *Room) Terminate(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.engine.Terminate(reason)
	r.flushLocked()
	r.finishIfOverLocked()
}

// AddObserver registers a spectator connection and replays the entire event
// log so it can reconstruct the match from the beginning.
func (r *Room) AddObserver(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs := &observerState{conn: conn}
	r.observers = append(r.observers, obs)
	for _, ev := range r.engine.AllEvents() {
		if conn.SendJSON(ev) != nil {
			return
		}
		obs.cursor++
	}
}

// EventsSince returns a copy of the match log from the given index onward,
// for observers catching up by index instead of full replay.
func (r *Room) EventsSince(from int) []game.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := r.engine.EventsSince(from)
	out := make([]game.Event, len(tail))
	copy(out, tail)
	return out
}

// RemoveObserver drops a spectator connection.
func (r *Room) RemoveObserver(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, obs := range r.observers {
		if obs.conn == conn {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// BroadcastEmote relays a cosmetic emote to every connection without
// touching the match log.
func (r *Room) BroadcastEmote(playerID, emoteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := map[string]any{
		"message_type": "emote",
		"room_id":      r.ID,
		"player_id":    playerID,
		"emote_id":     emoteID,
	}
	for _, seat := range r.seats {
		if seat.connected && seat.conn != nil {
			seat.conn.SendJSON(msg)
		}
	}
	for _, obs := range r.observers {
		obs.conn.SendJSON(msg)
	}
}

// HasPlayer reports whether the id is seated in this room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seat := range r.seats {
		if seat.playerID == playerID {
			return true
		}
	}
	return false
}

// IsOver reports whether the hosted match has finished.
func (r *Room) IsOver() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.IsOver()
}

// IdleFor returns the time since the room last saw a participant action.
func (r *Room) IdleFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastActivity)
}

// flushLocked delivers every undelivered event to each connected seat and
// observer. Cursors advance past send failures; the websocket layer reports
// the disconnect separately.
func (r *Room) flushLocked() {
	events := r.engine.AllEvents()
	for _, seat := range r.seats {
		if seat.conn == nil || !seat.connected {
			seat.cursor = len(events)
			continue
		}
		for _, ev := range events[seat.cursor:] {
			seat.conn.SendJSON(ev)
		}
		seat.cursor = len(events)
	}
	for _, obs := range r.observers {
		for _, ev := range events[obs.cursor:] {
			obs.conn.SendJSON(ev)
		}
		obs.cursor = len(events)
	}
}

// driveAgentsLocked answers pending decisions addressed to agent seats until
// the match pauses on a human or ends. An agent that cannot produce a legal
// response is a server defect, so the match terminates rather than stall.
func (r *Room) driveAgentsLocked() {
	for i := 0; i < agentLoopLimit; i++ {
		if r.engine.IsOver() {
			return
		}
		ev, ok := r.engine.PendingDecisionEvent()
		if !ok {
			return
		}
		seat := r.seatFor(ev.PlayerID)
		if seat == nil || seat.agent == nil {
			return
		}
		actionType, data, err := seat.agent.Respond(ev)
		if err != nil {
			r.logger.Error("agent cannot answer decision",
				zap.String("room_id", r.ID),
				zap.String("player_id", seat.playerID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
			r.engine.Terminate(game.ReasonServerError)
			r.flushLocked()
			return
		}
		before := len(r.engine.AllEvents())
		r.engine.HandleAction(seat.playerID, actionType, data)
		r.flushLocked()
		if rejected(r.engine.EventsSince(before)) {
			r.logger.Error("agent response rejected",
				zap.String("room_id", r.ID),
				zap.String("player_id", seat.playerID),
				zap.String("action_type", string(actionType)),
			)
			r.engine.Terminate(game.ReasonServerError)
			r.flushLocked()
			return
		}
	}
	r.logger.Error("agent loop limit reached", zap.String("room_id", r.ID))
	r.engine.Terminate(game.ReasonServerError)
	r.flushLocked()
}

func rejected(events []game.Event) bool {
	for _, ev := range events {
		if ev.Type == game.EventGameError {
			return true
		}
	}
	return false
}

func (r *Room) seatFor(playerID string) *seatState {
	for _, seat := range r.seats {
		if seat.playerID == playerID {
			return seat
		}
	}
	return nil
}

// finishIfOverLocked archives the finished match exactly once and notifies
// the manager.
func (r *Room) finishIfOverLocked() {
	if r.closed || !r.engine.IsOver() {
		return
	}
	r.closed = true
	rec := r.buildRecordLocked()
	sink := r.sink
	logger := r.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
		defer cancel()
		if err := sink.Save(ctx, rec); err != nil {
			logger.Error("failed to archive match record",
				zap.String("room_id", rec.RoomID),
				zap.Error(err),
			)
		}
	}()
	if r.onClose != nil {
		go r.onClose(r.ID)
	}
}

func (r *Room) buildRecordLocked() *archive.Record {
	result := r.engine.Result()
	rec := &archive.Record{
		RoomID:    r.ID,
		QueueName: r.QueueName,
		GameType:  r.GameType,
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
		Turns:     r.engine.TurnNumber(),
		Events:    r.engine.AllEvents(),
		Messages:  r.engine.AllGameMessages(),
	}
	if result != nil {
		rec.WinnerID = result.WinnerID
		rec.Reason = result.Reason
	}
	for _, seat := range r.seats {
		summary := archive.PlayerSummary{
			PlayerID: seat.playerID,
			Username: seat.username,
			IsAgent:  seat.agent != nil,
		}
		if p := r.engine.GetPlayer(seat.playerID); p != nil {
			summary.OshiID = p.Oshi.CardID
		}
		rec.Players = append(rec.Players, summary)
	}
	return rec
}
