package game

import "encoding/json"

// EventType tags every record appended to a match's event log.
type EventType string

const (
	// Informational events, broadcast only.
	EventGameStartInfo          EventType = "game_start_info"
	EventMulliganReveal         EventType = "mulligan_reveal"
	EventInitialPlacementPlaced EventType = "initial_placement_placed"
	EventInitialPlacementReveal EventType = "initial_placement_reveal"
	EventTurnStart              EventType = "turn_start"
	EventResetStepActivate      EventType = "reset_step_activate"
	EventResetStepCollab        EventType = "reset_step_collab"
	EventDraw                   EventType = "draw"
	EventShuffleDeck            EventType = "shuffle_deck"
	EventMainStepStart          EventType = "main_step_start"
	EventPerformanceStepStart   EventType = "performance_step_start"
	EventPerformArt             EventType = "perform_art"
	EventDamageDealt            EventType = "damage_dealt"
	EventLifeDamageDealt        EventType = "life_damage_dealt"
	EventDownedHolomem          EventType = "downed_holomem"
	EventRestoreHP              EventType = "restore_hp"
	EventMoveCard               EventType = "move_card"
	EventMoveAttachedCard       EventType = "move_attached_card"
	EventBloom                  EventType = "bloom"
	EventCollab                 EventType = "collab"
	EventBatonPass              EventType = "baton_pass"
	EventOshiSkillActivation    EventType = "oshi_skill_activation"
	EventPlaySupportCard        EventType = "play_support_card"
	EventGenerateHolopower      EventType = "generate_holopower"
	EventBoostStat              EventType = "boost_stat"
	EventAddTurnEffect          EventType = "add_turn_effect"
	EventEndTurn                EventType = "end_turn"
	EventGameError              EventType = "game_error"
	EventGameOver               EventType = "game_over"

	// Decision events; each names its desired_response and halts the engine
	// until exactly one matching response arrives.
	EventMulliganDecision          EventType = "mulligan_decision"
	EventInitialPlacementBegin     EventType = "initial_placement_begin"
	EventResetStepChooseNewCenter  EventType = "reset_step_choose_new_center"
	EventCheerStep                 EventType = "cheer_step"
	EventDecisionMainStep          EventType = "decision_main_step"
	EventDecisionPerformanceStep   EventType = "decision_performance_step"
	EventDecisionChoice            EventType = "decision_choice"
	EventDecisionChooseCards       EventType = "decision_choose_cards"
	EventDecisionChooseHolomem     EventType = "decision_choose_holomem_for_effect"
	EventDecisionOrderCards        EventType = "decision_order_cards"
	EventDecisionSendCheer         EventType = "decision_send_cheer"
	EventDecisionSwapHolomemCenter EventType = "decision_swap_holomem_to_center"
)

// Event is one immutable record in the match log. EventPlayerID designates
// the participant that must act; empty means broadcast only. Event-specific
// fields live in Data and are flattened into the wire object alongside
// event_type and event_player_id.
type Event struct {
	Type     EventType
	PlayerID string
	Data     map[string]any
}

// MarshalJSON flattens Data into the top-level object so responders see the
// flat record shape the protocol promises.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		out[k] = v
	}
	out["event_type"] = string(e.Type)
	if e.PlayerID != "" {
		out["event_player_id"] = e.PlayerID
	}
	return json.Marshal(out)
}

// Str returns a string field from the event data.
func (e Event) Str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Int returns an int field from the event data.
func (e Event) Int(key string) int {
	switch v := e.Data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Strs returns a string-slice field from the event data.
func (e Event) Strs(key string) []string {
	switch v := e.Data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// DesiredResponse returns the action kind a decision event expects back.
func (e Event) DesiredResponse() ActionType {
	return ActionType(e.Str("desired_response"))
}

// IsDecision reports whether the event requires a response.
func (e Event) IsDecision() bool {
	return e.Str("desired_response") != ""
}

// GameMessage is one inbound action recorded in the match's message log.
type GameMessage struct {
	PlayerID   string     `json:"player_id"`
	ActionType ActionType `json:"action_type"`
	ActionData ActionData `json:"action_data"`
}
