package agent

import (
	"fmt"
	"math/rand"

	"github.com/gkqls2420/projectGM-server/internal/game"
	"go.uber.org/zap"
)

// Agent is a deterministic automated responder. Given a decision event
// addressed to it, Respond produces exactly one legal action using a fixed
// greedy policy. Dispatch over decision kinds is a closed switch: an event
// kind without a policy is a hard error so protocol growth cannot silently
// degrade into stalled matches.
type Agent struct {
	playerID string
	rng      *rand.Rand
	logger   *zap.Logger
}

// New builds an agent seated as playerID. seed drives the agent's only
// random choice (collab selection) so matches stay reproducible.
func New(playerID string, seed int64, logger *zap.Logger) *Agent {
	return &Agent{
		playerID: playerID,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

// PlayerID returns the seat this agent responds for.
func (a *Agent) PlayerID() string { return a.playerID }

// Respond maps a decision event to the action this agent submits.
func (a *Agent) Respond(ev game.Event) (game.ActionType, game.ActionData, error) {
	switch ev.Type {
	case game.EventMulliganDecision:
		return game.ActionMulligan, game.ActionData{"do_mulligan": false}, nil

	case game.EventInitialPlacementBegin:
		return a.respondInitialPlacement(ev)

	case game.EventResetStepChooseNewCenter:
		options := ev.Strs("center_options")
		if len(options) == 0 {
			return "", nil, fmt.Errorf("new-center decision offered no options")
		}
		return game.ActionChooseNewCenter, game.ActionData{"new_center_card_id": options[0]}, nil

	case game.EventCheerStep:
		cheer := ev.Strs("cheer_to_place")
		options := ev.Strs("options")
		if len(cheer) == 0 || len(options) == 0 {
			return "", nil, fmt.Errorf("cheer decision offered no placement")
		}
		return game.ActionPlaceCheer, game.ActionData{
			"placements": map[string]string{cheer[0]: options[0]},
		}, nil

	case game.EventDecisionMainStep:
		return a.respondMainStep(ev)

	case game.EventDecisionPerformanceStep:
		return a.respondPerformanceStep(ev)

	case game.EventDecisionChoice:
		return game.ActionEffectMakeChoice, game.ActionData{
			"choice_index": ev.Int("min_choice"),
		}, nil

	case game.EventDecisionChooseCards:
		options := ev.Strs("cards_can_choose")
		take := ev.Int("amount_max")
		if take > len(options) {
			take = len(options)
		}
		return game.ActionEffectChooseCards, game.ActionData{
			"card_ids": anySlice(options[:take]),
		}, nil

	case game.EventDecisionChooseHolomem:
		options := ev.Strs("cards_can_choose")
		if len(options) == 0 {
			return "", nil, fmt.Errorf("holomem choice offered no options")
		}
		return game.ActionEffectChooseCards, game.ActionData{
			"card_ids": []any{options[0]},
		}, nil

	case game.EventDecisionOrderCards:
		return game.ActionEffectOrderCards, game.ActionData{
			"card_ids": anySlice(ev.Strs("card_ids")),
		}, nil

	case game.EventDecisionSendCheer:
		return a.respondSendCheer(ev)

	case game.EventDecisionSwapHolomemCenter:
		options := ev.Strs("center_options")
		if len(options) == 0 {
			return "", nil, fmt.Errorf("center swap offered no options")
		}
		return game.ActionEffectSwapToCenter, game.ActionData{"new_center_card_id": options[0]}, nil
	}
	return "", nil, fmt.Errorf("no policy for decision event %s", ev.Type)
}

// respondInitialPlacement takes the first debut as center and fills the
// backstage with the remaining debut and spot cards.
func (a *Agent) respondInitialPlacement(ev game.Event) (game.ActionType, game.ActionData, error) {
	debuts := ev.Strs("debut_options")
	spots := ev.Strs("spot_options")
	if len(debuts) == 0 {
		return "", nil, fmt.Errorf("initial placement without a debut option")
	}
	center := debuts[0]
	backstage := make([]string, 0, game.MaxBackstageSize)
	for _, id := range append(debuts[1:], spots...) {
		if len(backstage) == game.MaxBackstageSize {
			break
		}
		backstage = append(backstage, id)
	}
	return game.ActionInitialPlacement, game.ActionData{
		"center_holomem_card_id":     center,
		"backstage_holomem_card_ids": anySlice(backstage),
	}, nil
}

// Main-step action preference, highest first. The agent develops its board
// before spending resources, and performs before passing.
var mainStepPriority = []game.ActionType{
	game.ActionMainStepPlaceHolomem,
	game.ActionMainStepBloom,
	game.ActionMainStepCollab,
	game.ActionMainStepOshiSkill,
	game.ActionMainStepPlaySupport,
	game.ActionMainStepBeginPerformance,
	game.ActionMainStepEndTurn,
}

func (a *Agent) respondMainStep(ev game.Event) (game.ActionType, game.ActionData, error) {
	actions := eventActions(ev)
	for _, want := range mainStepPriority {
		matched := actionsOfType(actions, want)
		if len(matched) == 0 {
			continue
		}
		switch want {
		case game.ActionMainStepPlaceHolomem:
			return want, game.ActionData{"card_id": matched[0]["card_id"]}, nil
		case game.ActionMainStepBloom:
			return want, game.ActionData{
				"card_id":   matched[0]["card_id"],
				"target_id": matched[0]["target_id"],
			}, nil
		case game.ActionMainStepCollab:
			pick := matched[a.rng.Intn(len(matched))]
			return want, game.ActionData{"card_id": pick["card_id"]}, nil
		case game.ActionMainStepOshiSkill:
			pick := matched[len(matched)-1]
			return want, game.ActionData{"skill_id": pick["skill_id"]}, nil
		case game.ActionMainStepPlaySupport:
			return want, a.supportActionData(matched[0]), nil
		case game.ActionMainStepBeginPerformance, game.ActionMainStepEndTurn:
			return want, game.ActionData{}, nil
		}
	}
	return "", nil, fmt.Errorf("main step offered no actionable entries")
}

// supportActionData fills a support play, archiving the first required cheer
// when the card demands it.
func (a *Agent) supportActionData(entry map[string]any) game.ActionData {
	data := game.ActionData{"card_id": entry["card_id"]}
	required, _ := entry["cheer_to_archive_required"].(int)
	if required > 0 {
		options := strsFromAny(entry["cheer_to_archive_options"])
		if required > len(options) {
			required = len(options)
		}
		data["cheer_to_archive_from_play"] = anySlice(options[:required])
	}
	return data
}

// respondPerformanceStep uses the last listed art against the first target,
// and ends the turn once no art remains.
func (a *Agent) respondPerformanceStep(ev game.Event) (game.ActionType, game.ActionData, error) {
	actions := eventActions(ev)
	arts := actionsOfType(actions, game.ActionPerformanceStepUseArt)
	if len(arts) > 0 {
		pick := arts[len(arts)-1]
		targets := strsFromAny(pick["target_options"])
		if len(targets) == 0 {
			return "", nil, fmt.Errorf("art entry carries no targets")
		}
		return game.ActionPerformanceStepUseArt, game.ActionData{
			"performer_id": pick["performer_id"],
			"art_id":       pick["art_id"],
			"target_id":    targets[0],
		}, nil
	}
	if len(actionsOfType(actions, game.ActionPerformanceStepEndTurn)) > 0 {
		return game.ActionPerformanceStepEndTurn, game.ActionData{}, nil
	}
	return "", nil, fmt.Errorf("performance step offered no actionable entries")
}

// respondSendCheer attaches the maximum allowed cheer, all onto the first
// eligible holomem.
func (a *Agent) respondSendCheer(ev game.Event) (game.ActionType, game.ActionData, error) {
	cheer := ev.Strs("cheer_options")
	targets := ev.Strs("target_options")
	take := ev.Int("amount_max")
	if take > len(cheer) {
		take = len(cheer)
	}
	placements := make(map[string]string, take)
	if len(targets) > 0 {
		for _, id := range cheer[:take] {
			placements[id] = targets[0]
		}
	}
	return game.ActionEffectMoveCheer, game.ActionData{"placements": placements}, nil
}

// eventActions extracts the available_actions list from a decision event.
func eventActions(ev game.Event) []map[string]any {
	raw, ok := ev.Data["available_actions"]
	if !ok {
		return nil
	}
	switch list := raw.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func actionsOfType(actions []map[string]any, want game.ActionType) []map[string]any {
	var out []map[string]any
	for _, action := range actions {
		if s, _ := action["action_type"].(string); s == string(want) {
			out = append(out, action)
		}
	}
	return out
}

func strsFromAny(raw any) []string {
	switch v := raw.(type) {
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

func anySlice(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
