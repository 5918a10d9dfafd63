package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/game"
	"github.com/gkqls2420/projectGM-server/internal/matchmaking"
	"github.com/gkqls2420/projectGM-server/internal/session"
	"go.uber.org/zap"
)

// Client message types.
const (
	msgJoinServer        = "join_server"
	msgServerInfo        = "server_info"
	msgJoinQueue         = "join_matchmaking_queue"
	msgLeaveQueue        = "leave_matchmaking_queue"
	msgGameAction        = "game_action"
	msgObserveGame       = "observe_game"
	msgObserverGetEvents = "observer_get_events"
	msgStopObserving     = "stop_observing"
	msgLeaveGame         = "leave_game"
	msgEmote             = "emote"
)

func (s *Server) handleMessage(client *session.Client, payload map[string]any) {
	msgType, _ := payload["message_type"].(string)
	var err error
	switch msgType {
	case msgJoinServer:
		err = s.handleJoinServer(client, payload)
	case msgServerInfo:
		err = client.SendJSON(s.serverInfo())
	case msgJoinQueue:
		err = s.handleJoinQueue(client, payload)
	case msgLeaveQueue:
		s.matchmaker.Leave(client.ID)
		s.broadcastServerInfo()
	case msgGameAction:
		err = s.handleGameAction(client, payload)
	case msgObserveGame:
		err = s.handleObserveGame(client, payload)
	case msgObserverGetEvents:
		err = s.handleObserverGetEvents(client, payload)
	case msgStopObserving:
		s.handleStopObserving(client, payload)
	case msgLeaveGame:
		err = s.handleLeaveGame(client)
	case msgEmote:
		err = s.handleEmote(client, payload)
	default:
		err = fmt.Errorf("unknown message type %q", msgType)
	}
	if err != nil {
		s.logger.Debug("client message rejected",
			zap.String("client_id", client.ID),
			zap.String("message_type", msgType),
			zap.Error(err),
		)
		client.SendJSON(map[string]any{
			"message_type":  "error",
			"error_id":      "invalid_message",
			"error_message": err.Error(),
		})
	}
}

func (s *Server) handleJoinServer(client *session.Client, payload map[string]any) error {
	username, _ := payload["username"].(string)
	if username == "" {
		username = "player_" + client.ID[:8]
	}
	client.SetUsername(username)
	if err := client.SendJSON(map[string]any{
		"message_type": msgJoinServer,
		"player_id":    client.ID,
		"username":     username,
	}); err != nil {
		return err
	}
	s.broadcastServerInfo()
	return nil
}

func (s *Server) handleJoinQueue(client *session.Client, payload map[string]any) error {
	queueName, _ := payload["queue_name"].(string)
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		queueName = "main_matchmaking_normal"
	}
	gameType, _ := payload["game_type"].(string)
	if gameType == "" {
		gameType = matchmaking.GameTypeVersusPlayer
	}
	deck, err := s.decodeDeck(payload["deck"])
	if err != nil {
		return err
	}
	agentDeck, _ := payload["agent_deck"].(string)
	customGame, _ := payload["custom_game"].(bool)

	r, err := s.matchmaker.Join(queueName, gameType, &matchmaking.Entry{
		PlayerID:   client.ID,
		Username:   client.Username(),
		Conn:       client,
		Deck:       deck,
		AgentDeck:  agentDeck,
		CustomGame: customGame,
	})
	if err != nil {
		return err
	}
	if r == nil {
		if err := client.SendJSON(map[string]any{
			"message_type": "queued",
			"queue_name":   queueName,
			"game_type":    gameType,
		}); err != nil {
			return err
		}
	}
	s.broadcastServerInfo()
	return nil
}

// decodeDeck accepts a deck object in either the native or the holoDelta
// format and validates it against the catalog.
func (s *Server) decodeDeck(raw any) (*catalog.DeckDescriptor, error) {
	if raw == nil {
		return nil, fmt.Errorf("queue join requires a deck")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode deck: %w", err)
	}
	deck, err := catalog.NormalizeDeck(data)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.ValidateDeck(deck); err != nil {
		return nil, fmt.Errorf("deck is not legal: %w", err)
	}
	return deck, nil
}

func (s *Server) handleGameAction(client *session.Client, payload map[string]any) error {
	r, ok := s.rooms.RoomForPlayer(client.ID)
	if !ok {
		return fmt.Errorf("player is not in a match")
	}
	actionType, _ := payload["action_type"].(string)
	if actionType == "" {
		return fmt.Errorf("game action requires an action_type")
	}
	var data game.ActionData
	if raw, ok := payload["action_data"].(map[string]any); ok {
		data = game.ActionData(raw)
	} else {
		data = game.ActionData{}
	}
	r.HandleAction(client.ID, game.ActionType(actionType), data)
	return nil
}

func (s *Server) handleObserveGame(client *session.Client, payload map[string]any) error {
	roomID, _ := payload["room_id"].(string)
	r, ok := s.rooms.GetRoom(roomID)
	if !ok {
		return fmt.Errorf("room %s does not exist", roomID)
	}
	if err := client.SendJSON(map[string]any{
		"message_type": "observe_start",
		"room_id":      roomID,
	}); err != nil {
		return err
	}
	r.AddObserver(client)
	return nil
}

// handleObserverGetEvents serves the match log by index so an observer can
// catch up incrementally instead of replaying from zero.
func (s *Server) handleObserverGetEvents(client *session.Client, payload map[string]any) error {
	roomID, _ := payload["room_id"].(string)
	r, ok := s.rooms.GetRoom(roomID)
	if !ok {
		return fmt.Errorf("room %s does not exist", roomID)
	}
	from := 0
	if raw, ok := payload["next_event_index"].(float64); ok && raw > 0 {
		from = int(raw)
	}
	events := r.EventsSince(from)
	return client.SendJSON(map[string]any{
		"message_type":     "observer_events",
		"room_id":          roomID,
		"next_event_index": from + len(events),
		"events":           events,
	})
}

func (s *Server) handleStopObserving(client *session.Client, payload map[string]any) {
	roomID, _ := payload["room_id"].(string)
	if r, ok := s.rooms.GetRoom(roomID); ok {
		r.RemoveObserver(client)
	}
}

// handleLeaveGame resigns the player's live match.
func (s *Server) handleLeaveGame(client *session.Client) error {
	r, ok := s.rooms.RoomForPlayer(client.ID)
	if !ok {
		return fmt.Errorf("player is not in a match")
	}
	r.HandleAction(client.ID, game.ActionResign, game.ActionData{})
	return nil
}

func (s *Server) handleEmote(client *session.Client, payload map[string]any) error {
	r, ok := s.rooms.RoomForPlayer(client.ID)
	if !ok {
		return fmt.Errorf("player is not in a match")
	}
	emoteID, _ := payload["emote_id"].(string)
	if emoteID == "" {
		return fmt.Errorf("emote requires an emote_id")
	}
	r.BroadcastEmote(client.ID, emoteID)
	return nil
}
