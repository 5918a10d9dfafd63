package game

import (
	"fmt"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
)

// beginMainStep enters the main phase and offers the active player the full
// action menu.
func (e *Engine) beginMainStep(p *PlayerState) {
	e.phase = PhaseMain
	e.broadcast(EventMainStepStart, map[string]any{
		"active_player": p.PlayerID,
	})
	e.sendMainStepDecision(p)
}

// sendMainStepDecision recomputes the available actions from current state
// and pauses on a main-step decision.
func (e *Engine) sendMainStepDecision(p *PlayerState) {
	if e.over {
		return
	}
	actions := e.availableMainStepActions(p)
	accepts := map[ActionType]func(ActionData) error{
		ActionMainStepPlaceHolomem:     func(d ActionData) error { return e.handlePlaceHolomem(p, d) },
		ActionMainStepBloom:            func(d ActionData) error { return e.handleBloom(p, d) },
		ActionMainStepCollab:           func(d ActionData) error { return e.handleCollab(p, d) },
		ActionMainStepOshiSkill:        func(d ActionData) error { return e.handleOshiSkill(p, d) },
		ActionMainStepPlaySupport:      func(d ActionData) error { return e.handlePlaySupport(p, d) },
		ActionMainStepBatonPass:        func(d ActionData) error { return e.handleBatonPass(p, d) },
		ActionMainStepBeginPerformance: func(d ActionData) error { return e.handleBeginPerformance(p, d) },
		ActionMainStepEndTurn: func(ActionData) error {
			e.endTurn()
			return nil
		},
	}
	e.setDecision(EventDecisionMainStep, p.PlayerID, map[string]any{
		"active_player":     p.PlayerID,
		"available_actions": actions,
	}, accepts)
}

// availableMainStepActions enumerates every action the active player could
// legally take right now. Each entry carries action_type plus the fields a
// responder needs to construct the matching response.
func (e *Engine) availableMainStepActions(p *PlayerState) []map[string]any {
	var actions []map[string]any

	if e.backstageHasRoom(p) {
		for _, card := range p.Hand {
			if card.Def.IsDebutOrSpot() {
				actions = append(actions, map[string]any{
					"action_type": string(ActionMainStepPlaceHolomem),
					"card_id":     card.InstanceID,
				})
			}
		}
	}

	for _, card := range p.Hand {
		for _, target := range p.HolomemsInPlay() {
			if e.canBloom(card, target) {
				actions = append(actions, map[string]any{
					"action_type": string(ActionMainStepBloom),
					"card_id":     card.InstanceID,
					"target_id":   target.InstanceID,
				})
			}
		}
	}

	if p.Collab == nil && len(p.Deck) > 0 {
		for _, mem := range p.Backstage {
			if !mem.Resting && !mem.PlacedThisTurn {
				actions = append(actions, map[string]any{
					"action_type": string(ActionMainStepCollab),
					"card_id":     mem.InstanceID,
				})
			}
		}
	}

	for _, skill := range p.Oshi.Def.OshiSkills {
		if e.oshiSkillAvailable(p, &skill) {
			actions = append(actions, map[string]any{
				"action_type": string(ActionMainStepOshiSkill),
				"skill_id":    skill.SkillID,
			})
		}
	}

	for _, card := range p.Hand {
		if e.supportPlayable(p, card) {
			entry := map[string]any{
				"action_type": string(ActionMainStepPlaySupport),
				"card_id":     card.InstanceID,
			}
			if req, ok := card.Def.PlayRequirements[catalog.RequirementCheerToArchiveFromPlay]; ok {
				var attached []string
				for _, mem := range p.HolomemsInPlay() {
					attached = append(attached, instanceIDs(mem.AttachedCheer)...)
				}
				entry["cheer_to_archive_required"] = req.Length
				entry["cheer_to_archive_options"] = attached
			}
			actions = append(actions, entry)
		}
	}

	if opts := e.batonPassOptions(p); len(opts) > 0 {
		actions = append(actions, map[string]any{
			"action_type":       string(ActionMainStepBatonPass),
			"backstage_options": opts,
			"cost":              p.Center.Def.BatonCost,
		})
	}

	if e.performanceAllowed(p) {
		actions = append(actions, map[string]any{
			"action_type": string(ActionMainStepBeginPerformance),
		})
	}

	actions = append(actions, map[string]any{
		"action_type": string(ActionMainStepEndTurn),
	})
	return actions
}

// backstageHasRoom keeps a slot free for the collab member's return when one
// is out, so the reset step can never overflow the backstage.
func (e *Engine) backstageHasRoom(p *PlayerState) bool {
	if len(p.Backstage) >= MaxBackstageSize {
		return false
	}
	if p.Collab != nil && len(p.Backstage) >= MaxBackstageSize-1 {
		return false
	}
	return true
}

// canBloom reports whether the hand card may bloom onto the staged target.
func (e *Engine) canBloom(card, target *CardInstance) bool {
	// Neither player blooms on their first turn of the match.
	if e.turnNumber <= 2 {
		return false
	}
	if target.PlacedThisTurn || target.BloomedThisTurn {
		return false
	}
	if target.Def.Kind() != catalog.KindHolomem || !card.Def.SharesName(target.Def) {
		return false
	}
	switch card.Def.Bloom() {
	case catalog.BloomFirst:
		tb := target.Def.Bloom()
		return tb == catalog.BloomDebut || tb == catalog.BloomFirst
	case catalog.BloomSecond:
		tb := target.Def.Bloom()
		return tb == catalog.BloomFirst || tb == catalog.BloomSecond
	}
	return false
}

func (e *Engine) oshiSkillAvailable(p *PlayerState, skill *catalog.SkillDefinition) bool {
	key := p.PlayerID + ":" + skill.SkillID
	if skill.Timing == catalog.TimingOncePerGame && e.oshiSkillUsedThisGame[key] {
		return false
	}
	if e.oshiSkillUsedThisTurn[key] {
		return false
	}
	return p.Holopower() >= skill.Cost
}

func (e *Engine) supportPlayable(p *PlayerState, card *CardInstance) bool {
	if card.Def.Kind() != catalog.KindSupport {
		return false
	}
	if card.Def.Limited && e.limitedSupportThisTurn[p.PlayerID] {
		return false
	}
	if req, ok := card.Def.PlayRequirements[catalog.RequirementCheerToArchiveFromPlay]; ok {
		attached := 0
		for _, mem := range p.HolomemsInPlay() {
			attached += len(mem.AttachedCheer)
		}
		if attached < req.Length {
			return false
		}
	}
	return true
}

func (e *Engine) batonPassOptions(p *PlayerState) []string {
	if e.batonPassUsedThisTurn[p.PlayerID] || p.Center == nil {
		return nil
	}
	if len(p.Center.AttachedCheer) < p.Center.Def.BatonCost {
		return nil
	}
	var opts []string
	for _, mem := range p.Backstage {
		if !mem.Resting {
			opts = append(opts, mem.InstanceID)
		}
	}
	return opts
}

// performanceAllowed excludes the match's very first player turn.
func (e *Engine) performanceAllowed(p *PlayerState) bool {
	if e.turnNumber == 1 {
		return false
	}
	opp := e.Opponent(p.PlayerID)
	if len(opp.HolomemsInPlay()) == 0 {
		return false
	}
	for _, performer := range []*CardInstance{p.Center, p.Collab} {
		if performer != nil && !performer.Resting {
			return true
		}
	}
	return false
}

func (e *Engine) handlePlaceHolomem(p *PlayerState, data ActionData) error {
	cardID := data.Str("card_id")
	card := p.FindInHand(cardID)
	if card == nil {
		return fmt.Errorf("card %s is not in hand", cardID)
	}
	if !card.Def.IsDebutOrSpot() {
		return fmt.Errorf("card %s cannot be placed directly", cardID)
	}
	if !e.backstageHasRoom(p) {
		return fmt.Errorf("backstage is full")
	}
	p.RemoveFromHand(cardID)
	card.PlacedThisTurn = true
	p.Backstage = append(p.Backstage, card)
	e.broadcast(EventMoveCard, map[string]any{
		"moving_player_id": p.PlayerID,
		"card_id":          cardID,
		"from_zone":        "hand",
		"to_zone":          "backstage",
	})
	e.sendMainStepDecision(p)
	return nil
}

func (e *Engine) handleBloom(p *PlayerState, data ActionData) error {
	cardID := data.Str("card_id")
	targetID := data.Str("target_id")
	card := p.FindInHand(cardID)
	if card == nil {
		return fmt.Errorf("card %s is not in hand", cardID)
	}
	target := p.FindHolomemInPlay(targetID)
	if target == nil {
		return fmt.Errorf("card %s is not on stage", targetID)
	}
	if !e.canBloom(card, target) {
		return fmt.Errorf("card %s cannot bloom onto %s", cardID, targetID)
	}

	p.RemoveFromHand(cardID)
	// The bloomed card inherits damage, attachments, and the stack beneath.
	card.Damage = target.Damage
	card.AttachedCheer = target.AttachedCheer
	card.StackedUnder = append(target.StackedUnder, target)
	card.Resting = target.Resting
	card.BloomedThisTurn = true
	target.Damage = 0
	target.AttachedCheer = nil
	target.StackedUnder = nil
	p.ReplaceOnStage(target, card)

	e.broadcast(EventBloom, map[string]any{
		"bloom_player_id": p.PlayerID,
		"bloom_card_id":   cardID,
		"target_card_id":  targetID,
	})
	e.lastBloomFromOshiSkill = e.resolvingOshiSkill

	e.runEffects(p, card, card.Def.Effects, func() {
		e.lastBloomFromOshiSkill = false
		e.sendMainStepDecision(p)
	})
	return nil
}

func (e *Engine) handleCollab(p *PlayerState, data ActionData) error {
	cardID := data.Str("card_id")
	if p.Collab != nil {
		return fmt.Errorf("a collab member is already out")
	}
	mem := p.FindHolomemInPlay(cardID)
	if mem == nil {
		return fmt.Errorf("card %s is not on stage", cardID)
	}
	if !isBackstage(p, mem) {
		return fmt.Errorf("card %s is not in the backstage", cardID)
	}
	if mem.Resting {
		return fmt.Errorf("card %s is resting", cardID)
	}
	if mem.PlacedThisTurn {
		return fmt.Errorf("card %s was placed this turn", cardID)
	}
	if len(p.Deck) == 0 {
		return fmt.Errorf("no deck card to generate holopower")
	}

	p.RemoveFromStage(cardID)
	p.Collab = mem
	top := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.HolopowerPile = append(p.HolopowerPile, top)
	e.broadcast(EventCollab, map[string]any{
		"collab_player_id": p.PlayerID,
		"collab_card_id":   cardID,
	})
	e.broadcast(EventGenerateHolopower, map[string]any{
		"generating_player_id": p.PlayerID,
		"holopower_generated":  1,
		"holopower_total":      p.Holopower(),
	})

	// Stage effects on debut and spot cards fire on collab; effects on bloom
	// cards fire when blooming instead.
	effects := mem.Def.Effects
	if !mem.Def.IsDebutOrSpot() {
		effects = nil
	}
	e.runEffects(p, mem, effects, func() {
		e.sendMainStepDecision(p)
	})
	return nil
}

func (e *Engine) handleOshiSkill(p *PlayerState, data ActionData) error {
	skillID := data.Str("skill_id")
	var skill *catalog.SkillDefinition
	for i := range p.Oshi.Def.OshiSkills {
		if p.Oshi.Def.OshiSkills[i].SkillID == skillID {
			skill = &p.Oshi.Def.OshiSkills[i]
			break
		}
	}
	if skill == nil {
		return fmt.Errorf("oshi has no skill %s", skillID)
	}
	if !e.oshiSkillAvailable(p, skill) {
		return fmt.Errorf("skill %s is not available", skillID)
	}

	key := p.PlayerID + ":" + skillID
	e.oshiSkillUsedThisTurn[key] = true
	if skill.Timing == catalog.TimingOncePerGame {
		e.oshiSkillUsedThisGame[key] = true
	}
	// Pay holopower from the top of the pile into the archive.
	for i := 0; i < skill.Cost; i++ {
		spent := p.HolopowerPile[len(p.HolopowerPile)-1]
		p.HolopowerPile = p.HolopowerPile[:len(p.HolopowerPile)-1]
		p.Archive = append(p.Archive, spent)
	}
	e.broadcast(EventOshiSkillActivation, map[string]any{
		"oshi_player_id":  p.PlayerID,
		"skill_id":        skillID,
		"holopower_spent": skill.Cost,
		"holopower_total": p.Holopower(),
	})

	e.resolvingOshiSkill = true
	e.runEffects(p, p.Oshi, skill.Effects, func() {
		e.resolvingOshiSkill = false
		e.sendMainStepDecision(p)
	})
	return nil
}

func (e *Engine) handlePlaySupport(p *PlayerState, data ActionData) error {
	cardID := data.Str("card_id")
	card := p.FindInHand(cardID)
	if card == nil {
		return fmt.Errorf("card %s is not in hand", cardID)
	}
	if !e.supportPlayable(p, card) {
		return fmt.Errorf("card %s cannot be played now", cardID)
	}

	// Collect play requirement payloads before committing anything.
	var cheerToArchive []*CardInstance
	var cheerHolders []*CardInstance
	if req, ok := card.Def.PlayRequirements[catalog.RequirementCheerToArchiveFromPlay]; ok {
		ids := data.Strs("cheer_to_archive_from_play")
		if len(ids) != req.Length {
			return fmt.Errorf("requires archiving %d cheer from play, got %d", req.Length, len(ids))
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return fmt.Errorf("cheer %s listed twice", id)
			}
			seen[id] = true
			cheer, holder := findAttachedCheer(p, id)
			if cheer == nil {
				return fmt.Errorf("cheer %s is not attached to your holomem", id)
			}
			cheerToArchive = append(cheerToArchive, cheer)
			cheerHolders = append(cheerHolders, holder)
		}
	}

	p.RemoveFromHand(cardID)
	if card.Def.Limited {
		e.limitedSupportThisTurn[p.PlayerID] = true
	}
	for i, cheer := range cheerToArchive {
		detachCheer(cheerHolders[i], cheer)
		p.Archive = append(p.Archive, cheer)
		e.broadcast(EventMoveAttachedCard, map[string]any{
			"owning_player_id": p.PlayerID,
			"attached_id":      cheer.InstanceID,
			"from_holomem_id":  cheerHolders[i].InstanceID,
			"to_zone":          "archive",
		})
	}
	e.broadcast(EventPlaySupportCard, map[string]any{
		"playing_player_id": p.PlayerID,
		"card_id":           cardID,
		"support_type":      card.Def.SupportType(),
		"limited":           card.Def.Limited,
	})

	e.runEffects(p, card, card.Def.Effects, func() {
		// Support cards resolve then land in the archive.
		p.Archive = append(p.Archive, card)
		e.broadcast(EventMoveCard, map[string]any{
			"moving_player_id": p.PlayerID,
			"card_id":          cardID,
			"from_zone":        "play",
			"to_zone":          "archive",
		})
		e.sendMainStepDecision(p)
	})
	return nil
}

func (e *Engine) handleBatonPass(p *PlayerState, data ActionData) error {
	targetID := data.Str("new_center_card_id")
	opts := e.batonPassOptions(p)
	if len(opts) == 0 {
		return fmt.Errorf("baton pass is not available")
	}
	if !contains(opts, targetID) {
		return fmt.Errorf("card %s cannot take the center", targetID)
	}
	cheerIDs := data.Strs("cheer_to_archive")
	cost := p.Center.Def.BatonCost
	if len(cheerIDs) != cost {
		return fmt.Errorf("baton pass costs %d cheer, got %d", cost, len(cheerIDs))
	}
	center := p.Center
	var paying []*CardInstance
	seen := make(map[string]bool, len(cheerIDs))
	for _, id := range cheerIDs {
		if seen[id] {
			return fmt.Errorf("cheer %s listed twice", id)
		}
		seen[id] = true
		found := false
		for _, cheer := range center.AttachedCheer {
			if cheer.InstanceID == id {
				paying = append(paying, cheer)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("cheer %s is not attached to the center", id)
		}
	}

	e.batonPassUsedThisTurn[p.PlayerID] = true
	for _, cheer := range paying {
		detachCheer(center, cheer)
		p.Archive = append(p.Archive, cheer)
	}
	target := p.RemoveFromStage(targetID)
	p.Center = target
	p.Backstage = append(p.Backstage, center)
	e.broadcast(EventBatonPass, map[string]any{
		"baton_player_id":    p.PlayerID,
		"old_center_card_id": center.InstanceID,
		"new_center_card_id": target.InstanceID,
		"cheer_archived":     cheerIDs,
	})
	e.sendMainStepDecision(p)
	return nil
}

func (e *Engine) handleBeginPerformance(p *PlayerState, _ ActionData) error {
	if !e.performanceAllowed(p) {
		return fmt.Errorf("performance is not available")
	}
	e.beginPerformanceStep(p)
	return nil
}

func isBackstage(p *PlayerState, mem *CardInstance) bool {
	for _, b := range p.Backstage {
		if b == mem {
			return true
		}
	}
	return false
}

// findAttachedCheer locates a cheer instance attached to any of the player's
// staged holomem, returning the cheer and its holder.
func findAttachedCheer(p *PlayerState, instanceID string) (*CardInstance, *CardInstance) {
	for _, mem := range p.HolomemsInPlay() {
		for _, cheer := range mem.AttachedCheer {
			if cheer.InstanceID == instanceID {
				return cheer, mem
			}
		}
	}
	return nil, nil
}

func detachCheer(holder, cheer *CardInstance) {
	for i, c := range holder.AttachedCheer {
		if c == cheer {
			holder.AttachedCheer = append(holder.AttachedCheer[:i], holder.AttachedCheer[i+1:]...)
			return
		}
	}
}
