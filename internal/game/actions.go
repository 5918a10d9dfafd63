package game

// ActionType tags every response a participant can submit. A response is
// accepted only when its action type equals the pending decision's
// desired_response.
type ActionType string

const (
	ActionMulligan         ActionType = "mulligan"
	ActionInitialPlacement ActionType = "initial_placement"
	ActionChooseNewCenter  ActionType = "choose_new_center"
	ActionPlaceCheer       ActionType = "place_cheer"

	ActionMainStepPlaceHolomem     ActionType = "mainstep_place_holomem"
	ActionMainStepBloom            ActionType = "mainstep_bloom"
	ActionMainStepCollab           ActionType = "mainstep_collab"
	ActionMainStepOshiSkill        ActionType = "mainstep_oshi_skill"
	ActionMainStepPlaySupport      ActionType = "mainstep_play_support"
	ActionMainStepBatonPass        ActionType = "mainstep_baton_pass"
	ActionMainStepBeginPerformance ActionType = "mainstep_begin_performance"
	ActionMainStepEndTurn          ActionType = "mainstep_end_turn"

	ActionPerformanceStepUseArt  ActionType = "performance_step_use_art"
	ActionPerformanceStepEndTurn ActionType = "performance_step_end_turn"

	ActionEffectMakeChoice   ActionType = "effect_resolution_make_choice"
	ActionEffectChooseCards  ActionType = "effect_resolution_choose_cards_for_effect"
	ActionEffectOrderCards   ActionType = "effect_resolution_order_cards"
	ActionEffectMoveCheer    ActionType = "effect_resolution_move_cheer_between_holomems"
	ActionEffectSwapToCenter ActionType = "effect_resolution_swap_holomem_to_center"

	// Resign is accepted at any time, pending decision or not.
	ActionResign ActionType = "resign"
)

// ActionData is the flat field mapping of a response payload.
type ActionData map[string]any

// Str returns a string field from the payload.
func (d ActionData) Str(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns a boolean field from the payload.
func (d ActionData) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Int returns an integer field from the payload, accepting JSON numbers.
func (d ActionData) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Strs returns a string-slice field from the payload.
func (d ActionData) Strs(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// StrMap returns a string-to-string mapping field, e.g. cheer placements.
func (d ActionData) StrMap(key string) map[string]string {
	switch v := d[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out[k] = s
		}
		return out
	}
	return nil
}
