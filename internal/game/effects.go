package game

import (
	"fmt"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
)

// runEffects queues an effect chain for the given owner and source card and
// drains the queue. then runs once every queued effect (including any that
// pause on player decisions) has fully resolved.
func (e *Engine) runEffects(p *PlayerState, source *CardInstance, specs []catalog.EffectSpec, then func()) {
	if e.resume != nil {
		panic("effect chain started while another is resolving")
	}
	for _, spec := range specs {
		e.effectQueue = append(e.effectQueue, queuedEffect{player: p, source: source, spec: spec})
	}
	e.resume = then
	e.runEffectQueue()
}

// runEffectQueue executes queued effects until the queue drains, the match
// ends, or an effect pauses on a decision. Decision resolvers call back into
// this method to continue the chain.
func (e *Engine) runEffectQueue() {
	for len(e.effectQueue) > 0 && !e.over && e.pending == nil {
		next := e.effectQueue[0]
		e.effectQueue = e.effectQueue[1:]
		e.executeEffect(next)
	}
	if e.over || e.pending != nil {
		return
	}
	then := e.resume
	e.resume = nil
	if then != nil {
		then()
	}
}

// requeueFront puts an effect back at the head of the queue, used by repeat
// and by choice branches.
func (e *Engine) requeueFront(effects ...queuedEffect) {
	e.effectQueue = append(effects, e.effectQueue...)
}

func (e *Engine) executeEffect(q queuedEffect) {
	if !e.conditionsMet(q.player, q.source, q.spec.Conditions) {
		return
	}
	switch q.spec.Type {
	case catalog.EffectPowerBoost:
		e.executePowerBoost(q)
	case catalog.EffectDealDamage:
		e.executeDealDamage(q)
	case catalog.EffectRestoreHP:
		e.executeRestoreHP(q)
	case catalog.EffectDraw:
		e.executeDraw(q)
	case catalog.EffectGenerateHolopower:
		e.executeGenerateHolopower(q)
	case catalog.EffectSendCheer:
		e.executeSendCheer(q)
	case catalog.EffectChooseCards:
		e.executeChooseCards(q)
	case catalog.EffectAddTurnEffect:
		e.executeAddTurnEffect(q)
	case catalog.EffectChoice:
		e.executeChoice(q)
	}
}

// conditionsMet evaluates every condition against current state; specs with
// no conditions always pass.
func (e *Engine) conditionsMet(p *PlayerState, source *CardInstance, conds []catalog.ConditionSpec) bool {
	for _, cond := range conds {
		if !e.conditionMet(p, source, cond) {
			return false
		}
	}
	return true
}

func (e *Engine) conditionMet(p *PlayerState, source *CardInstance, cond catalog.ConditionSpec) bool {
	switch cond.Condition {
	case catalog.ConditionBloomFromOshiSkill:
		return e.lastBloomFromOshiSkill
	case catalog.ConditionCenterHasAnyTag:
		if p.Center == nil {
			return false
		}
		return hasAnyTag(p.Center.Def.Tags, cond.Tags)
	case catalog.ConditionHolopowerAtLeast:
		return p.Holopower() >= cond.Amount
	case catalog.ConditionAttachedCheerCountAtLeast:
		return source != nil && len(source.AttachedCheer) >= cond.Amount
	case catalog.ConditionOpponentBackstageDamagedCount:
		count := 0
		for _, mem := range e.Opponent(p.PlayerID).Backstage {
			if mem.Damage > 0 {
				count++
			}
		}
		return count >= cond.Amount
	case catalog.ConditionPerformerIsCenter:
		return source != nil && source == p.Center
	}
	return false
}

func hasAnyTag(tags, wanted []string) bool {
	for _, tag := range tags {
		for _, w := range wanted {
			if tag == w {
				return true
			}
		}
	}
	return false
}

// targetRef pairs a staged holomem with its owner so downs archive into the
// right player's zones.
type targetRef struct {
	owner *PlayerState
	card  *CardInstance
}

// targetCandidates resolves an effect's target scope to staged holomem,
// applying the spec's limitation filter. An empty scope defaults to the
// effect source itself.
func (e *Engine) targetCandidates(p *PlayerState, source *CardInstance, spec catalog.EffectSpec) []targetRef {
	opp := e.Opponent(p.PlayerID)
	var cards []targetRef
	add := func(owner *PlayerState, card *CardInstance) {
		if card != nil && matchesLimitation(card.Def, spec) {
			cards = append(cards, targetRef{owner: owner, card: card})
		}
	}
	switch spec.Target {
	case "", catalog.TargetSelf:
		if source != nil && p.FindHolomemInPlay(source.InstanceID) != nil {
			add(p, source)
		}
	case catalog.TargetCenter:
		add(p, p.Center)
	case catalog.TargetCollab:
		add(p, p.Collab)
	case catalog.TargetBackstage:
		for _, mem := range p.Backstage {
			add(p, mem)
		}
	case catalog.TargetHolomem:
		for _, mem := range p.HolomemsInPlay() {
			add(p, mem)
		}
	case catalog.TargetOpponentCenter:
		add(opp, opp.Center)
	case catalog.TargetOpponentBackstage:
		for _, mem := range opp.Backstage {
			add(opp, mem)
		}
	case catalog.TargetOpponentHolomem:
		for _, mem := range opp.HolomemsInPlay() {
			add(opp, mem)
		}
	}
	return cards
}

func matchesLimitation(def *catalog.CardDefinition, spec catalog.EffectSpec) bool {
	switch spec.Limitation {
	case catalog.LimitationNameIn:
		return hasAnyTag(def.Names, spec.LimitationNames)
	case catalog.LimitationColorIn:
		return hasAnyTag(def.Colors, spec.LimitationColors)
	case catalog.LimitationTagIn:
		return hasAnyTag(def.Tags, spec.LimitationTags)
	}
	return true
}

// effectAmount computes a spec's numeric amount, scaling by the per counter
// when one is declared.
func (e *Engine) effectAmount(p *PlayerState, spec catalog.EffectSpec) int {
	amount := spec.Amount.Value
	if spec.Per == nil {
		return amount
	}
	count := 0
	switch spec.Per.Kind {
	case catalog.PerDamagedOpponentBackstage:
		for _, mem := range e.Opponent(p.PlayerID).Backstage {
			if mem.Damage > 0 {
				count++
			}
		}
	case catalog.PerOwnHolomemWithTag:
		for _, mem := range p.HolomemsInPlay() {
			if hasAnyTag(mem.Def.Tags, []string{spec.Per.Tag}) {
				count++
			}
		}
	}
	return amount + spec.AmountPer*count
}

func (e *Engine) executePowerBoost(q queuedEffect) {
	if e.currentArtPower == nil {
		return
	}
	amount := e.effectAmount(q.player, q.spec)
	if amount == 0 {
		return
	}
	*e.currentArtPower += amount
	e.broadcast(EventBoostStat, map[string]any{
		"boost_player_id": q.player.PlayerID,
		"card_id":         q.source.InstanceID,
		"stat":            "power",
		"amount":          amount,
	})
}

func (e *Engine) executeDealDamage(q queuedEffect) {
	amount := e.effectAmount(q.player, q.spec)
	if amount <= 0 {
		return
	}
	candidates := e.targetCandidates(q.player, q.source, q.spec)
	if len(candidates) == 0 {
		return
	}
	if q.spec.MultipleTargets || len(candidates) == 1 {
		// Every listed target takes its hit before any center replacement.
		var downed *PlayerState
		for _, ref := range candidates {
			if e.over {
				return
			}
			if e.applyDamage(ref.owner, ref.card, amount, q.source.InstanceID) {
				downed = ref.owner
			}
		}
		if downed != nil && !e.over {
			e.resolveDownedCenter(downed, func() { e.runEffectQueue() })
		}
		return
	}
	e.chooseEffectTarget(q, candidates, func(ref targetRef) {
		if e.applyDamage(ref.owner, ref.card, amount, q.source.InstanceID) {
			e.resolveDownedCenter(ref.owner, func() { e.runEffectQueue() })
			return
		}
		e.runEffectQueue()
	})
}

func (e *Engine) executeRestoreHP(q queuedEffect) {
	candidates := e.targetCandidates(q.player, q.source, q.spec)
	damaged := candidates[:0:0]
	for _, ref := range candidates {
		if ref.card.Damage > 0 {
			damaged = append(damaged, ref)
		}
	}
	if len(damaged) == 0 {
		return
	}
	heal := func(ref targetRef) {
		amount := ref.card.Damage
		if !q.spec.Amount.All {
			amount = e.effectAmount(q.player, q.spec)
			if amount > ref.card.Damage {
				amount = ref.card.Damage
			}
		}
		ref.card.Damage -= amount
		e.broadcast(EventRestoreHP, map[string]any{
			"target_player_id": ref.owner.PlayerID,
			"card_id":          ref.card.InstanceID,
			"healed":           amount,
			"remaining_hp":     ref.card.RemainingHP(),
		})
	}
	if q.spec.MultipleTargets || len(damaged) == 1 {
		for _, ref := range damaged {
			heal(ref)
		}
		return
	}
	e.chooseEffectTarget(q, damaged, func(ref targetRef) {
		heal(ref)
		e.runEffectQueue()
	})
}

// chooseEffectTarget pauses on a holomem-selection decision when an effect
// has more than one legal target.
func (e *Engine) chooseEffectTarget(q queuedEffect, candidates []targetRef, then func(targetRef)) {
	options := make([]string, 0, len(candidates))
	for _, ref := range candidates {
		options = append(options, ref.card.InstanceID)
	}
	e.setDecision(EventDecisionChooseHolomem, q.player.PlayerID, map[string]any{
		"effect_player_id": q.player.PlayerID,
		"effect_type":      string(q.spec.Type),
		"cards_can_choose": options,
		"desired_response": string(ActionEffectChooseCards),
	}, singleResponse(ActionEffectChooseCards, func(data ActionData) error {
		chosen := data.Strs("card_ids")
		if len(chosen) != 1 || !contains(options, chosen[0]) {
			return fmt.Errorf("exactly one listed holomem must be chosen")
		}
		for _, ref := range candidates {
			if ref.card.InstanceID == chosen[0] {
				then(ref)
				return nil
			}
		}
		return fmt.Errorf("card %s is not a candidate", chosen[0])
	}))
}

func (e *Engine) executeDraw(q queuedEffect) {
	amount := e.effectAmount(q.player, q.spec)
	if amount <= 0 {
		return
	}
	drawn, ok := q.player.DrawCards(amount)
	e.broadcast(EventDraw, map[string]any{
		"drawing_player_id": q.player.PlayerID,
		"drawn_card_ids":    instanceIDs(drawn),
	})
	if !ok {
		e.endGame(e.Opponent(q.player.PlayerID).PlayerID, q.player.PlayerID, ReasonDeckOut)
	}
}

func (e *Engine) executeGenerateHolopower(q queuedEffect) {
	amount := e.effectAmount(q.player, q.spec)
	moved := 0
	for i := 0; i < amount && len(q.player.Deck) > 0; i++ {
		top := q.player.Deck[0]
		q.player.Deck = q.player.Deck[1:]
		q.player.HolopowerPile = append(q.player.HolopowerPile, top)
		moved++
	}
	if moved == 0 {
		return
	}
	e.broadcast(EventGenerateHolopower, map[string]any{
		"generating_player_id": q.player.PlayerID,
		"holopower_generated":  moved,
		"holopower_total":      q.player.Holopower(),
	})
}

// executeSendCheer pauses on a cheer-placement decision: the effect owner
// distributes cheer from the source zone onto eligible holomem.
func (e *Engine) executeSendCheer(q queuedEffect) {
	p := q.player
	var pool []*CardInstance
	switch q.spec.From {
	case "archive":
		for _, card := range p.Archive {
			if card.Def.Kind() == catalog.KindCheer {
				pool = append(pool, card)
			}
		}
	default: // cheer_deck
		pool = append(pool, p.CheerDeck...)
	}
	if len(pool) == 0 {
		return
	}

	targetSpec := q.spec
	if targetSpec.Target == "" {
		targetSpec.Target = catalog.TargetHolomem
	}
	targets := e.targetCandidates(p, q.source, targetSpec)
	if len(targets) == 0 {
		return
	}

	max := q.spec.AmountMax
	if q.spec.Amount.All || max == 0 || max > len(pool) {
		max = len(pool)
	}
	min := q.spec.AmountMin
	if min > max {
		min = max
	}
	targetOptions := make([]string, 0, len(targets))
	for _, ref := range targets {
		targetOptions = append(targetOptions, ref.card.InstanceID)
	}

	e.setDecision(EventDecisionSendCheer, p.PlayerID, map[string]any{
		"effect_player_id": p.PlayerID,
		"from_zone":        q.spec.From,
		"cheer_options":    instanceIDs(pool),
		"target_options":   targetOptions,
		"amount_min":       min,
		"amount_max":       max,
		"desired_response": string(ActionEffectMoveCheer),
	}, singleResponse(ActionEffectMoveCheer, func(data ActionData) error {
		placements := data.StrMap("placements")
		if len(placements) < min || len(placements) > max {
			return fmt.Errorf("must place between %d and %d cheer, got %d", min, max, len(placements))
		}
		moves := make(map[*CardInstance]*CardInstance, len(placements))
		for cheerID, targetID := range placements {
			var cheer *CardInstance
			for _, c := range pool {
				if c.InstanceID == cheerID {
					cheer = c
					break
				}
			}
			if cheer == nil {
				return fmt.Errorf("cheer %s is not available to move", cheerID)
			}
			var target *CardInstance
			for _, ref := range targets {
				if ref.card.InstanceID == targetID {
					target = ref.card
					break
				}
			}
			if target == nil {
				return fmt.Errorf("card %s is not an eligible cheer target", targetID)
			}
			moves[cheer] = target
		}
		for cheer, target := range moves {
			switch q.spec.From {
			case "archive":
				removeInstance(&p.Archive, cheer.InstanceID)
			default:
				removeInstance(&p.CheerDeck, cheer.InstanceID)
			}
			target.AttachedCheer = append(target.AttachedCheer, cheer)
			e.broadcast(EventMoveAttachedCard, map[string]any{
				"owning_player_id": p.PlayerID,
				"attached_id":      cheer.InstanceID,
				"from_zone":        q.spec.From,
				"to_holomem_id":    target.InstanceID,
			})
		}
		if q.spec.Repeat && len(moves) > 0 {
			e.requeueFront(q)
		}
		e.runEffectQueue()
		return nil
	}))
}

// executeChooseCards reveals cards from a zone and pauses while the effect
// owner picks which ones move to the destination.
func (e *Engine) executeChooseCards(q queuedEffect) {
	p := q.player
	var seen []*CardInstance
	switch q.spec.From {
	case "deck":
		look := q.spec.LookAt
		if look <= 0 || look > len(p.Deck) {
			look = len(p.Deck)
		}
		seen = append(seen, p.Deck[:look]...)
	case "archive":
		seen = append(seen, p.Archive...)
	case "hand":
		seen = append(seen, p.Hand...)
	}
	if len(seen) == 0 {
		return
	}

	var choosable []*CardInstance
	for _, card := range seen {
		if matchesCardTypes(card.Def, q.spec.WithTypes) && matchesLimitation(card.Def, q.spec) {
			choosable = append(choosable, card)
		}
	}

	max := q.spec.AmountMax
	if q.spec.Amount.All || max == 0 || max > len(choosable) {
		max = len(choosable)
	}
	min := q.spec.AmountMin
	if min > max {
		min = max
	}
	if max == 0 && q.spec.From != "deck" {
		return
	}
	choosableIDs := instanceIDs(choosable)

	e.setDecision(EventDecisionChooseCards, p.PlayerID, map[string]any{
		"effect_player_id": p.PlayerID,
		"from_zone":        q.spec.From,
		"destination":      q.spec.Destination,
		"all_card_seen":    instanceIDs(seen),
		"cards_can_choose": choosableIDs,
		"amount_min":       min,
		"amount_max":       max,
		"desired_response": string(ActionEffectChooseCards),
	}, singleResponse(ActionEffectChooseCards, func(data ActionData) error {
		chosenIDs := data.Strs("card_ids")
		if len(chosenIDs) < min || len(chosenIDs) > max {
			return fmt.Errorf("must choose between %d and %d cards, got %d", min, max, len(chosenIDs))
		}
		picked := make(map[string]bool, len(chosenIDs))
		var chosen []*CardInstance
		for _, id := range chosenIDs {
			if picked[id] {
				return fmt.Errorf("card %s chosen twice", id)
			}
			if !contains(choosableIDs, id) {
				return fmt.Errorf("card %s is not choosable", id)
			}
			picked[id] = true
			for _, card := range choosable {
				if card.InstanceID == id {
					chosen = append(chosen, card)
				}
			}
		}

		// Pull everything seen out of the source zone, then route.
		switch q.spec.From {
		case "deck":
			p.Deck = p.Deck[len(seen):]
		case "archive":
			for _, card := range chosen {
				removeInstance(&p.Archive, card.InstanceID)
			}
		case "hand":
			for _, card := range chosen {
				p.RemoveFromHand(card.InstanceID)
			}
		}
		var remainder []*CardInstance
		if q.spec.From == "deck" {
			for _, card := range seen {
				if !picked[card.InstanceID] {
					remainder = append(remainder, card)
				}
			}
		}

		finish := func(ordered []*CardInstance) {
			e.deliverChosenCards(q, ordered, remainder)
			if q.spec.Repeat && len(ordered) > 0 {
				e.requeueFront(q)
			}
			e.runEffectQueue()
		}
		if q.spec.Destination == "deck" && len(chosen) > 1 {
			e.orderCardsDecision(p, chosen, finish)
			return nil
		}
		finish(chosen)
		return nil
	}))
}

// deliverChosenCards moves selected cards to the destination zone and sends
// any unchosen deck cards to the bottom of the deck in their seen order.
func (e *Engine) deliverChosenCards(q queuedEffect, chosen, remainder []*CardInstance) {
	p := q.player
	for _, card := range chosen {
		switch q.spec.Destination {
		case "hand":
			p.Hand = append(p.Hand, card)
		case "archive":
			p.Archive = append(p.Archive, card)
		case "deck":
			// Ordered cards stack on top, first choice topmost.
		}
		e.broadcast(EventMoveCard, map[string]any{
			"moving_player_id": p.PlayerID,
			"card_id":          card.InstanceID,
			"from_zone":        q.spec.From,
			"to_zone":          q.spec.Destination,
		})
	}
	if q.spec.Destination == "deck" {
		p.Deck = append(append([]*CardInstance{}, chosen...), p.Deck...)
	}
	p.Deck = append(p.Deck, remainder...)
}

// orderCardsDecision lets the effect owner fix the top-of-deck order for
// cards returning to the deck.
func (e *Engine) orderCardsDecision(p *PlayerState, cards []*CardInstance, then func([]*CardInstance)) {
	ids := instanceIDs(cards)
	e.setDecision(EventDecisionOrderCards, p.PlayerID, map[string]any{
		"effect_player_id": p.PlayerID,
		"card_ids":         ids,
		"to_zone":          "deck",
		"desired_response": string(ActionEffectOrderCards),
	}, singleResponse(ActionEffectOrderCards, func(data ActionData) error {
		orderedIDs := data.Strs("card_ids")
		if len(orderedIDs) != len(ids) {
			return fmt.Errorf("ordering must include every card exactly once")
		}
		used := make(map[string]bool, len(orderedIDs))
		ordered := make([]*CardInstance, 0, len(orderedIDs))
		for _, id := range orderedIDs {
			if used[id] || !contains(ids, id) {
				return fmt.Errorf("ordering must include every card exactly once")
			}
			used[id] = true
			for _, card := range cards {
				if card.InstanceID == id {
					ordered = append(ordered, card)
				}
			}
		}
		then(ordered)
		return nil
	}))
}

func (e *Engine) executeAddTurnEffect(q queuedEffect) {
	e.turnEffects = append(e.turnEffects, *q.spec.TurnEffect)
	e.broadcast(EventAddTurnEffect, map[string]any{
		"effect_player_id": q.player.PlayerID,
		"source":           q.spec.TurnEffect.Source,
		"power_boost":      q.spec.TurnEffect.PowerBoost,
	})
}

// executeChoice pauses while the effect owner picks one branch; the chosen
// branch's effects run next, ahead of anything already queued.
func (e *Engine) executeChoice(q queuedEffect) {
	options := make([]any, 0, len(q.spec.Options))
	for _, branch := range q.spec.Options {
		summary := make([]map[string]any, 0, len(branch))
		for _, spec := range branch {
			summary = append(summary, map[string]any{
				"effect_type": string(spec.Type),
				"amount":      spec.Amount.Value,
			})
		}
		options = append(options, summary)
	}
	e.setDecision(EventDecisionChoice, q.player.PlayerID, map[string]any{
		"effect_player_id": q.player.PlayerID,
		"choice":           options,
		"min_choice":       0,
		"max_choice":       len(q.spec.Options) - 1,
		"desired_response": string(ActionEffectMakeChoice),
	}, singleResponse(ActionEffectMakeChoice, func(data ActionData) error {
		idx, ok := data.Int("choice_index")
		if !ok || idx < 0 || idx >= len(q.spec.Options) {
			return fmt.Errorf("choice_index out of range")
		}
		branch := make([]queuedEffect, 0, len(q.spec.Options[idx]))
		for _, spec := range q.spec.Options[idx] {
			branch = append(branch, queuedEffect{player: q.player, source: q.source, spec: spec})
		}
		e.requeueFront(branch...)
		e.runEffectQueue()
		return nil
	}))
}

// matchesCardTypes accepts both raw card_type strings and broad kinds.
func matchesCardTypes(def *catalog.CardDefinition, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == def.CardType || t == string(def.Kind()) {
			return true
		}
	}
	return false
}

func removeInstance(pile *[]*CardInstance, instanceID string) *CardInstance {
	for i, card := range *pile {
		if card.InstanceID == instanceID {
			*pile = append((*pile)[:i], (*pile)[i+1:]...)
			return card
		}
	}
	return nil
}
