package game

import (
	"fmt"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
)

func (e *Engine) beginPerformanceStep(p *PlayerState) {
	e.phase = PhasePerformance
	e.broadcast(EventPerformanceStepStart, map[string]any{
		"active_player": p.PlayerID,
	})
	e.sendPerformanceDecision(p)
}

func (e *Engine) sendPerformanceDecision(p *PlayerState) {
	if e.over {
		return
	}
	actions := e.availablePerformanceActions(p)
	accepts := map[ActionType]func(ActionData) error{
		ActionPerformanceStepUseArt: func(d ActionData) error { return e.handleUseArt(p, d) },
		ActionPerformanceStepEndTurn: func(ActionData) error {
			e.endTurn()
			return nil
		},
	}
	e.setDecision(EventDecisionPerformanceStep, p.PlayerID, map[string]any{
		"active_player":     p.PlayerID,
		"available_actions": actions,
	}, accepts)
}

func (e *Engine) availablePerformanceActions(p *PlayerState) []map[string]any {
	var actions []map[string]any
	targets := e.artTargets(p)
	if len(targets) > 0 {
		for _, performer := range []*CardInstance{p.Center, p.Collab} {
			if performer == nil || performer.Resting || e.usedArtThisTurn[performer.InstanceID] {
				continue
			}
			for _, art := range performer.Def.Arts {
				if !performer.HasCheerCost(art.Costs) {
					continue
				}
				actions = append(actions, map[string]any{
					"action_type":    string(ActionPerformanceStepUseArt),
					"performer_id":   performer.InstanceID,
					"art_id":         art.ArtID,
					"power":          art.Power,
					"target_options": targets,
				})
			}
		}
	}
	actions = append(actions, map[string]any{
		"action_type": string(ActionPerformanceStepEndTurn),
	})
	return actions
}

// artTargets returns the opponent stage members an art may hit. The opponent
// center is the only base-rules target; it is always present while the match
// is live because downs resolve a replacement immediately.
func (e *Engine) artTargets(p *PlayerState) []string {
	opp := e.Opponent(p.PlayerID)
	if opp.Center == nil {
		return nil
	}
	return []string{opp.Center.InstanceID}
}

func (e *Engine) handleUseArt(p *PlayerState, data ActionData) error {
	performerID := data.Str("performer_id")
	artID := data.Str("art_id")
	targetID := data.Str("target_id")

	var performer *CardInstance
	for _, candidate := range []*CardInstance{p.Center, p.Collab} {
		if candidate != nil && candidate.InstanceID == performerID {
			performer = candidate
		}
	}
	if performer == nil {
		return fmt.Errorf("card %s cannot perform", performerID)
	}
	if performer.Resting {
		return fmt.Errorf("card %s is resting", performerID)
	}
	if e.usedArtThisTurn[performer.InstanceID] {
		return fmt.Errorf("card %s already performed this turn", performerID)
	}
	var art *catalog.ArtDefinition
	for i := range performer.Def.Arts {
		if performer.Def.Arts[i].ArtID == artID {
			art = &performer.Def.Arts[i]
			break
		}
	}
	if art == nil {
		return fmt.Errorf("card %s has no art %s", performerID, artID)
	}
	if !performer.HasCheerCost(art.Costs) {
		return fmt.Errorf("art %s cheer cost is not paid", artID)
	}
	if !contains(e.artTargets(p), targetID) {
		return fmt.Errorf("card %s is not a valid target", targetID)
	}

	e.usedArtThisTurn[performer.InstanceID] = true
	power := art.Power + e.turnEffectBoost(p, performer)
	e.currentArtPower = &power
	e.broadcast(EventPerformArt, map[string]any{
		"performer_player_id": p.PlayerID,
		"performer_id":        performer.InstanceID,
		"art_id":              artID,
		"target_id":           targetID,
		"power":               power,
	})

	// Art effects resolve first so power boosts land before damage.
	e.runEffects(p, performer, art.Effects, func() {
		e.finishArt(p, performer, targetID)
	})
	return nil
}

// turnEffectBoost sums active turn effects that apply to this performer.
func (e *Engine) turnEffectBoost(p *PlayerState, performer *CardInstance) int {
	boost := 0
	for _, te := range e.turnEffects {
		switch te.Source {
		case "", catalog.TargetHolomem:
			boost += te.PowerBoost
		case catalog.TargetCenter:
			if performer == p.Center {
				boost += te.PowerBoost
			}
		case catalog.TargetCollab:
			if performer == p.Collab {
				boost += te.PowerBoost
			}
		}
	}
	return boost
}

// finishArt applies the accumulated art power to the target and resumes the
// performance step, routing through a center replacement when the hit downs
// the opponent's center.
func (e *Engine) finishArt(p *PlayerState, performer *CardInstance, targetID string) {
	power := *e.currentArtPower
	e.currentArtPower = nil
	opp := e.Opponent(p.PlayerID)
	target := opp.FindHolomemInPlay(targetID)
	cont := func() {
		if !e.over {
			e.sendPerformanceDecision(p)
		}
	}
	if target == nil {
		// Target left the stage while effects resolved; the art fizzles.
		cont()
		return
	}
	centerDowned := e.applyDamage(opp, target, power, performer.InstanceID)
	if e.over {
		return
	}
	if centerDowned {
		e.resolveDownedCenter(opp, cont)
		return
	}
	cont()
}

// applyDamage deals damage to a staged holomem and resolves a down when HP
// reaches zero: archive the pile, life loss for the owner (doubled for buzz
// holomem). Returns whether the owner's center was downed and a replacement
// is still owed.
func (e *Engine) applyDamage(owner *PlayerState, target *CardInstance, amount int, sourceID string) bool {
	if amount <= 0 {
		return false
	}
	target.Damage += amount
	e.broadcast(EventDamageDealt, map[string]any{
		"target_player_id": owner.PlayerID,
		"target_id":        target.InstanceID,
		"damage":           amount,
		"source_card_id":   sourceID,
		"remaining_hp":     target.RemainingHP(),
	})
	if target.RemainingHP() > 0 {
		return false
	}

	wasCenter := owner.Center == target
	lifeLoss := 1
	if target.Def.Buzz {
		lifeLoss = 2
	}
	owner.RemoveFromStage(target.InstanceID)
	owner.ArchiveHolomem(target)
	e.broadcast(EventDownedHolomem, map[string]any{
		"owner_player_id": owner.PlayerID,
		"card_id":         target.InstanceID,
		"life_loss":       lifeLoss,
		"was_center":      wasCenter,
	})
	e.loseLife(owner, lifeLoss, sourceID)
	if e.over {
		return false
	}
	if wasCenter && len(owner.HolomemsInPlay()) == 0 {
		e.endGame(e.Opponent(owner.PlayerID).PlayerID, owner.PlayerID, ReasonNoHolomem)
		return false
	}
	return wasCenter
}

// resolveDownedCenter asks the owner to promote a replacement center. The
// collab member may take the center as well as backstage members.
func (e *Engine) resolveDownedCenter(owner *PlayerState, then func()) {
	if e.over {
		return
	}
	var options []string
	if owner.Collab != nil {
		options = append(options, owner.Collab.InstanceID)
	}
	options = append(options, instanceIDs(owner.Backstage)...)
	if len(options) == 0 {
		e.endGame(e.Opponent(owner.PlayerID).PlayerID, owner.PlayerID, ReasonNoHolomem)
		return
	}
	e.setDecision(EventDecisionSwapHolomemCenter, owner.PlayerID, map[string]any{
		"active_player":    owner.PlayerID,
		"center_options":   options,
		"desired_response": string(ActionEffectSwapToCenter),
	}, singleResponse(ActionEffectSwapToCenter, func(data ActionData) error {
		chosen := data.Str("new_center_card_id")
		if !contains(options, chosen) {
			return fmt.Errorf("card %s cannot take the center", chosen)
		}
		owner.Center = owner.RemoveFromStage(chosen)
		e.broadcast(EventMoveCard, map[string]any{
			"moving_player_id": owner.PlayerID,
			"card_id":          chosen,
			"from_zone":        "backstage",
			"to_zone":          "center",
		})
		then()
		return nil
	}))
}
