package game

import (
	"fmt"
	"math/rand"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"go.uber.org/zap"
)

// GamePhase is the engine's top-level state.
type GamePhase string

const (
	PhaseInitialPlacement GamePhase = "initial_placement"
	PhaseReset            GamePhase = "reset"
	PhaseCheer            GamePhase = "cheer"
	PhaseMain             GamePhase = "main"
	PhasePerformance      GamePhase = "performance"
	PhaseGameOver         GamePhase = "game_over"
)

// Game over reasons recorded on the final event.
const (
	ReasonLife        = "life"
	ReasonDeckOut     = "deck_out"
	ReasonNoHolomem   = "no_holomem"
	ReasonResign      = "resign"
	ReasonForfeit     = "forfeit"
	ReasonTimeout     = "timeout"
	ReasonServerError = "server_error"
)

// Error ids surfaced on recoverable game_error events.
const (
	ErrorIDMatchOver     = "match_over"
	ErrorIDNoDecision    = "no_pending_decision"
	ErrorIDNotYourTurn   = "not_your_decision"
	ErrorIDWrongAction   = "wrong_action_type"
	ErrorIDInvalidAction = "invalid_action"
)

// PlayerInfo seeds one side of a match.
type PlayerInfo struct {
	PlayerID string
	Username string
	Deck     *catalog.DeckDescriptor
}

// GameOverInfo describes the terminal state of a match.
type GameOverInfo struct {
	WinnerID string
	LoserID  string
	Reason   string
}

// pendingDecision is the single persisted pause point. The engine blocks
// until a response arrives whose action type is in accepts and whose sender
// matches playerID; resolve validates fully before mutating, so a rejected
// response leaves the decision in place untouched.
type pendingDecision struct {
	playerID string
	event    Event
	accepts  map[ActionType]func(ActionData) error
}

// queuedEffect is one effect awaiting execution, with its owning player and
// the card that produced it.
type queuedEffect struct {
	player *PlayerState
	source *CardInstance
	spec   catalog.EffectSpec
}

// Engine owns and evolves one match's authoritative state. It is not safe
// for concurrent use; the match room serializes all calls into it.
type Engine struct {
	logger  *zap.Logger
	catalog *catalog.Catalog

	gameType string
	rng      *rand.Rand

	players     [2]*PlayerState
	activeIdx   int
	startingIdx int
	turnNumber  int
	phase       GamePhase

	allEvents       []Event
	allGameMessages []GameMessage

	pending *pendingDecision

	// effect pipeline
	effectQueue []queuedEffect
	resume      func() // continuation once the queue drains

	// transient per-turn / per-game state
	turnEffects            []catalog.TurnEffectSpec
	usedArtThisTurn        map[string]bool
	oshiSkillUsedThisTurn  map[string]bool
	oshiSkillUsedThisGame  map[string]bool
	limitedSupportThisTurn map[string]bool
	batonPassUsedThisTurn  map[string]bool
	lastBloomFromOshiSkill bool
	resolvingOshiSkill     bool
	currentArtPower        *int // set while an art is resolving

	over     bool
	gameOver *GameOverInfo
}

// NewEngine constructs a match from validated decks. seed drives every
// shuffle and random choice so a match can be reproduced.
func NewEngine(logger *zap.Logger, cat *catalog.Catalog, gameType string, infos []PlayerInfo, seed int64) (*Engine, error) {
	if len(infos) != 2 {
		return nil, fmt.Errorf("a standard match requires exactly 2 players, got %d", len(infos))
	}
	e := &Engine{
		logger:                 logger,
		catalog:                cat,
		gameType:               gameType,
		rng:                    rand.New(rand.NewSource(seed)),
		phase:                  PhaseInitialPlacement,
		usedArtThisTurn:        make(map[string]bool),
		oshiSkillUsedThisTurn:  make(map[string]bool),
		oshiSkillUsedThisGame:  make(map[string]bool),
		limitedSupportThisTurn: make(map[string]bool),
		batonPassUsedThisTurn:  make(map[string]bool),
	}
	for i, info := range infos {
		player, err := e.buildPlayer(info)
		if err != nil {
			return nil, err
		}
		e.players[i] = player
	}
	return e, nil
}

func (e *Engine) buildPlayer(info PlayerInfo) (*PlayerState, error) {
	if info.Deck == nil {
		return nil, fmt.Errorf("player %s has no deck", info.PlayerID)
	}
	p := &PlayerState{
		PlayerID: info.PlayerID,
		Username: info.Username,
	}
	oshiDef, ok := e.catalog.Lookup(info.Deck.OshiID)
	if !ok || oshiDef.Kind() != catalog.KindOshi {
		return nil, fmt.Errorf("player %s: invalid oshi %s", info.PlayerID, info.Deck.OshiID)
	}
	p.Oshi = p.newInstance(oshiDef)
	for cardID, count := range info.Deck.Deck {
		def, ok := e.catalog.Lookup(cardID)
		if !ok {
			return nil, fmt.Errorf("player %s: unknown card %s", info.PlayerID, cardID)
		}
		for i := 0; i < count; i++ {
			p.Deck = append(p.Deck, p.newInstance(def))
		}
	}
	for cardID, count := range info.Deck.CheerDeck {
		def, ok := e.catalog.Lookup(cardID)
		if !ok {
			return nil, fmt.Errorf("player %s: unknown cheer card %s", info.PlayerID, cardID)
		}
		for i := 0; i < count; i++ {
			p.CheerDeck = append(p.CheerDeck, p.newInstance(def))
		}
	}
	return p, nil
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() GamePhase { return e.phase }

// IsOver reports whether the match reached a terminal state.
func (e *Engine) IsOver() bool { return e.over }

// Result returns the terminal state info once the match is over.
func (e *Engine) Result() *GameOverInfo { return e.gameOver }

// TurnNumber returns the current player-turn number (1-based).
func (e *Engine) TurnNumber() int { return e.turnNumber }

// ActivePlayerID returns the player whose turn is in progress.
func (e *Engine) ActivePlayerID() string { return e.players[e.activeIdx].PlayerID }

// GetPlayer returns the player state for an id.
func (e *Engine) GetPlayer(playerID string) *PlayerState {
	for _, p := range e.players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the other player.
func (e *Engine) Opponent(playerID string) *PlayerState {
	for _, p := range e.players {
		if p.PlayerID != playerID {
			return p
		}
	}
	return nil
}

// Players returns both player states in seat order.
func (e *Engine) Players() []*PlayerState {
	return []*PlayerState{e.players[0], e.players[1]}
}

// AllEvents returns the full append-only event log.
func (e *Engine) AllEvents() []Event { return e.allEvents }

// EventsSince returns the contiguous suffix of the log from index i.
func (e *Engine) EventsSince(i int) []Event {
	if i < 0 || i > len(e.allEvents) {
		return nil
	}
	return e.allEvents[i:]
}

// AllGameMessages returns the inbound action log.
func (e *Engine) AllGameMessages() []GameMessage { return e.allGameMessages }

// PendingDecisionPlayer returns the participant a decision is waiting on.
func (e *Engine) PendingDecisionPlayer() (string, bool) {
	if e.pending == nil {
		return "", false
	}
	return e.pending.playerID, true
}

// PendingDecisionEvent returns the decision event currently awaiting a
// response.
func (e *Engine) PendingDecisionEvent() (Event, bool) {
	if e.pending == nil {
		return Event{}, false
	}
	return e.pending.event, true
}

func (e *Engine) appendEvent(ev Event) {
	e.allEvents = append(e.allEvents, ev)
}

// broadcast appends an informational event with no designated responder.
func (e *Engine) broadcast(t EventType, data map[string]any) {
	e.appendEvent(Event{Type: t, Data: data})
}

// setDecision appends a decision event and installs the pending slot. Only
// one decision may be pending at a time.
func (e *Engine) setDecision(t EventType, playerID string, data map[string]any, accepts map[ActionType]func(ActionData) error) {
	if e.pending != nil {
		// Engine invariant violation; fail loudly rather than corrupt state.
		panic("decision emitted while another is pending")
	}
	ev := Event{Type: t, PlayerID: playerID, Data: data}
	e.pending = &pendingDecision{playerID: playerID, event: ev, accepts: accepts}
	e.appendEvent(ev)
}

// singleResponse builds the accepts map for a one-kind decision.
func singleResponse(action ActionType, resolve func(ActionData) error) map[ActionType]func(ActionData) error {
	return map[ActionType]func(ActionData) error{action: resolve}
}

func (e *Engine) emitGameError(playerID, errorID, message string) {
	e.broadcast(EventGameError, map[string]any{
		"error_player_id": playerID,
		"error_id":        errorID,
		"error_message":   message,
	})
	if e.logger != nil {
		e.logger.Debug("game error",
			zap.String("player_id", playerID),
			zap.String("error_id", errorID),
			zap.String("message", message),
		)
	}
}

// BeginGame starts the match: shuffles, opening hands, mulligans.
func (e *Engine) BeginGame() {
	e.startingIdx = e.rng.Intn(2)
	e.activeIdx = e.startingIdx

	playerInfo := make([]map[string]any, 0, 2)
	for _, p := range e.players {
		p.Life = p.Oshi.Def.Life
		p.ShuffleDeck(e.rng)
		p.ShuffleCheerDeck(e.rng)
		e.broadcast(EventShuffleDeck, map[string]any{"shuffling_player_id": p.PlayerID})
		playerInfo = append(playerInfo, map[string]any{
			"player_id": p.PlayerID,
			"username":  p.Username,
			"oshi_id":   p.Oshi.CardID,
			"life":      p.Life,
		})
	}
	e.broadcast(EventGameStartInfo, map[string]any{
		"starting_player": e.players[e.startingIdx].PlayerID,
		"game_type":       e.gameType,
		"player_info":     playerInfo,
	})

	for _, p := range e.players {
		drawn, ok := p.DrawCards(openingHandSize)
		if !ok {
			e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonDeckOut)
			return
		}
		e.broadcast(EventDraw, map[string]any{
			"drawing_player_id": p.PlayerID,
			"drawn_card_ids":    instanceIDs(drawn),
		})
	}

	e.sendMulliganDecision(e.startingIdx)
}

const openingHandSize = 7

// sendMulliganDecision asks seat idx whether to redraw the opening hand.
func (e *Engine) sendMulliganDecision(idx int) {
	p := e.players[idx]
	e.setDecision(EventMulliganDecision, p.PlayerID, map[string]any{
		"active_player":    p.PlayerID,
		"hand_count":       len(p.Hand),
		"desired_response": string(ActionMulligan),
	}, singleResponse(ActionMulligan, func(data ActionData) error {
		if data.Bool("do_mulligan") {
			e.performMulligan(p, len(p.Hand), false)
		}
		if e.over {
			return nil
		}
		e.forceMulligans(p)
		if e.over {
			return nil
		}
		if idx == e.startingIdx {
			e.sendMulliganDecision(1 - idx)
		} else {
			e.sendInitialPlacement(e.startingIdx)
		}
		return nil
	}))
}

// performMulligan returns the hand to the deck, shuffles, and redraws.
func (e *Engine) performMulligan(p *PlayerState, drawCount int, forced bool) {
	e.broadcast(EventMulliganReveal, map[string]any{
		"revealing_player_id": p.PlayerID,
		"revealed_card_ids":   instanceIDs(p.Hand),
		"forced":              forced,
	})
	p.ReturnHandToDeck()
	p.ShuffleDeck(e.rng)
	e.broadcast(EventShuffleDeck, map[string]any{"shuffling_player_id": p.PlayerID})
	p.mulliganCount++
	if drawCount <= 0 {
		e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonDeckOut)
		return
	}
	drawn, ok := p.DrawCards(drawCount)
	if !ok {
		e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonDeckOut)
		return
	}
	e.broadcast(EventDraw, map[string]any{
		"drawing_player_id": p.PlayerID,
		"drawn_card_ids":    instanceIDs(drawn),
	})
}

// forceMulligans redraws, one card fewer each time, while the hand has no
// debut holomem to place.
func (e *Engine) forceMulligans(p *PlayerState) {
	for !e.over && !handHasDebut(p.Hand) {
		e.performMulligan(p, len(p.Hand)-1, true)
	}
}

func handHasDebut(hand []*CardInstance) bool {
	for _, card := range hand {
		if card.Def.Bloom() == catalog.BloomDebut {
			return true
		}
	}
	return false
}

// sendInitialPlacement asks seat idx to choose a center and backstage from
// the debut and spot holomem in hand.
func (e *Engine) sendInitialPlacement(idx int) {
	p := e.players[idx]
	var debutOptions, spotOptions []string
	for _, card := range p.Hand {
		switch card.Def.Bloom() {
		case catalog.BloomDebut:
			debutOptions = append(debutOptions, card.InstanceID)
		case catalog.BloomSpot:
			spotOptions = append(spotOptions, card.InstanceID)
		}
	}
	e.setDecision(EventInitialPlacementBegin, p.PlayerID, map[string]any{
		"active_player":    p.PlayerID,
		"debut_options":    debutOptions,
		"spot_options":     spotOptions,
		"desired_response": string(ActionInitialPlacement),
	}, singleResponse(ActionInitialPlacement, func(data ActionData) error {
		centerID := data.Str("center_holomem_card_id")
		backstageIDs := data.Strs("backstage_holomem_card_ids")
		if !contains(debutOptions, centerID) {
			return fmt.Errorf("center %s is not a debut option", centerID)
		}
		if len(backstageIDs) > MaxBackstageSize {
			return fmt.Errorf("backstage limited to %d, got %d", MaxBackstageSize, len(backstageIDs))
		}
		seen := map[string]bool{centerID: true}
		for _, id := range backstageIDs {
			if seen[id] {
				return fmt.Errorf("card %s chosen twice", id)
			}
			if !contains(debutOptions, id) && !contains(spotOptions, id) {
				return fmt.Errorf("card %s is not placeable", id)
			}
			seen[id] = true
		}

		p.Center = p.RemoveFromHand(centerID)
		for _, id := range backstageIDs {
			p.Backstage = append(p.Backstage, p.RemoveFromHand(id))
		}
		e.broadcast(EventInitialPlacementPlaced, map[string]any{
			"active_player":   p.PlayerID,
			"center_card_id":  centerID,
			"backstage_count": len(backstageIDs),
		})

		if idx == e.startingIdx {
			e.sendInitialPlacement(1 - idx)
		} else {
			e.revealPlacementsAndStart()
		}
		return nil
	}))
}

func (e *Engine) revealPlacementsAndStart() {
	placements := make([]map[string]any, 0, 2)
	for _, p := range e.players {
		placements = append(placements, map[string]any{
			"player_id":          p.PlayerID,
			"center_card_id":     p.Center.InstanceID,
			"backstage_card_ids": instanceIDs(p.Backstage),
			"oshi_id":            p.Oshi.CardID,
			"life":               p.Life,
		})
	}
	e.broadcast(EventInitialPlacementReveal, map[string]any{
		"placements": placements,
	})
	e.startTurn(e.startingIdx)
}

// startTurn begins a player turn at the reset phase.
func (e *Engine) startTurn(idx int) {
	e.activeIdx = idx
	e.turnNumber++
	p := e.players[idx]
	e.broadcast(EventTurnStart, map[string]any{
		"active_player": p.PlayerID,
		"turn_number":   e.turnNumber,
	})
	e.phase = PhaseReset
	e.resetStep(p)
}

func (e *Engine) resetStep(p *PlayerState) {
	// Rested members activate first; the collab member returns afterwards so
	// it stays rested until the owner's next reset step.
	var activated []string
	for _, mem := range p.HolomemsInPlay() {
		if mem.Resting {
			mem.Resting = false
			activated = append(activated, mem.InstanceID)
		}
	}
	e.broadcast(EventResetStepActivate, map[string]any{
		"active_player":      p.PlayerID,
		"activated_card_ids": activated,
	})

	if p.Collab != nil {
		collab := p.Collab
		p.Collab = nil
		collab.Resting = true
		p.Backstage = append(p.Backstage, collab)
		e.broadcast(EventResetStepCollab, map[string]any{
			"active_player": p.PlayerID,
			"card_id":       collab.InstanceID,
		})
	}

	if p.Center == nil {
		if len(p.Backstage) == 0 {
			e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonNoHolomem)
			return
		}
		options := instanceIDs(p.Backstage)
		e.setDecision(EventResetStepChooseNewCenter, p.PlayerID, map[string]any{
			"active_player":    p.PlayerID,
			"center_options":   options,
			"desired_response": string(ActionChooseNewCenter),
		}, singleResponse(ActionChooseNewCenter, func(data ActionData) error {
			chosen := data.Str("new_center_card_id")
			if !contains(options, chosen) {
				return fmt.Errorf("card %s is not a center option", chosen)
			}
			p.Center = p.RemoveFromStage(chosen)
			e.broadcast(EventMoveCard, map[string]any{
				"moving_player_id": p.PlayerID,
				"card_id":          chosen,
				"from_zone":        "backstage",
				"to_zone":          "center",
			})
			e.afterReset(p)
			return nil
		}))
		return
	}
	e.afterReset(p)
}

// afterReset draws the turn card and moves to the cheer step.
func (e *Engine) afterReset(p *PlayerState) {
	drawn, ok := p.DrawCards(1)
	if !ok {
		e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonDeckOut)
		return
	}
	e.broadcast(EventDraw, map[string]any{
		"drawing_player_id": p.PlayerID,
		"drawn_card_ids":    instanceIDs(drawn),
	})
	e.phase = PhaseCheer
	e.cheerStep(p)
}

func (e *Engine) cheerStep(p *PlayerState) {
	if len(p.CheerDeck) == 0 || len(p.HolomemsInPlay()) == 0 {
		e.beginMainStep(p)
		return
	}
	cheer := p.CheerDeck[0]
	options := instanceIDs(p.HolomemsInPlay())
	e.setDecision(EventCheerStep, p.PlayerID, map[string]any{
		"active_player":    p.PlayerID,
		"cheer_to_place":   []string{cheer.InstanceID},
		"options":          options,
		"desired_response": string(ActionPlaceCheer),
	}, singleResponse(ActionPlaceCheer, func(data ActionData) error {
		placements := data.StrMap("placements")
		target, ok := placements[cheer.InstanceID]
		if !ok || len(placements) != 1 {
			return fmt.Errorf("placements must map exactly the drawn cheer")
		}
		if !contains(options, target) {
			return fmt.Errorf("card %s is not a valid cheer target", target)
		}
		p.CheerDeck = p.CheerDeck[1:]
		mem := p.FindHolomemInPlay(target)
		mem.AttachedCheer = append(mem.AttachedCheer, cheer)
		e.broadcast(EventMoveAttachedCard, map[string]any{
			"owning_player_id": p.PlayerID,
			"attached_id":      cheer.InstanceID,
			"from_zone":        "cheer_deck",
			"to_holomem_id":    target,
		})
		e.beginMainStep(p)
		return nil
	}))
}

// endTurn clears per-turn state and hands the turn to the other player.
func (e *Engine) endTurn() {
	active := e.players[e.activeIdx]
	next := e.players[1-e.activeIdx]
	e.broadcast(EventEndTurn, map[string]any{
		"ending_player_id": active.PlayerID,
		"next_player_id":   next.PlayerID,
	})
	e.turnEffects = nil
	e.usedArtThisTurn = make(map[string]bool)
	for key := range e.oshiSkillUsedThisTurn {
		delete(e.oshiSkillUsedThisTurn, key)
	}
	delete(e.limitedSupportThisTurn, active.PlayerID)
	delete(e.batonPassUsedThisTurn, active.PlayerID)
	for _, mem := range active.HolomemsInPlay() {
		mem.PlacedThisTurn = false
		mem.BloomedThisTurn = false
	}
	e.startTurn(1 - e.activeIdx)
}

// HandleAction is the single resume entry point. A response that does not
// match the pending decision (or its authorized responder) is rejected
// without mutating state and surfaced as a recoverable game_error event.
func (e *Engine) HandleAction(playerID string, actionType ActionType, data ActionData) {
	e.allGameMessages = append(e.allGameMessages, GameMessage{
		PlayerID:   playerID,
		ActionType: actionType,
		ActionData: data,
	})

	if e.over {
		e.emitGameError(playerID, ErrorIDMatchOver, "the match is already over")
		return
	}
	if actionType == ActionResign {
		if e.GetPlayer(playerID) == nil {
			e.emitGameError(playerID, ErrorIDInvalidAction, "not seated in this match")
			return
		}
		e.endGame(e.Opponent(playerID).PlayerID, playerID, ReasonResign)
		return
	}
	if e.pending == nil {
		e.emitGameError(playerID, ErrorIDNoDecision, "no decision is pending")
		return
	}
	if e.pending.playerID != playerID {
		e.emitGameError(playerID, ErrorIDNotYourTurn, "decision is not addressed to this player")
		return
	}
	resolve, ok := e.pending.accepts[actionType]
	if !ok {
		e.emitGameError(playerID, ErrorIDWrongAction,
			fmt.Sprintf("action %s does not match the pending decision", actionType))
		return
	}

	decision := e.pending
	e.pending = nil
	if err := resolve(data); err != nil {
		// Validation failed before any mutation; restore the decision.
		e.pending = decision
		e.emitGameError(playerID, ErrorIDInvalidAction, err.Error())
	}
}

// Forfeit ends the match against the departing player.
func (e *Engine) Forfeit(playerID, reason string) {
	if e.over {
		return
	}
	opponent := e.Opponent(playerID)
	if opponent == nil {
		return
	}
	e.endGame(opponent.PlayerID, playerID, reason)
}

// Terminate ends the match with no winner. Used when the room hits an
// unrecoverable server-side failure.
func (e *Engine) Terminate(reason string) {
	if e.over {
		return
	}
	e.endGame("", "", reason)
}

func (e *Engine) endGame(winnerID, loserID, reason string) {
	if e.over {
		return
	}
	e.over = true
	e.phase = PhaseGameOver
	e.pending = nil
	e.effectQueue = nil
	e.resume = nil
	e.gameOver = &GameOverInfo{WinnerID: winnerID, LoserID: loserID, Reason: reason}
	e.broadcast(EventGameOver, map[string]any{
		"winner_id": winnerID,
		"loser_id":  loserID,
		"reason":    reason,
	})
	if e.logger != nil {
		e.logger.Info("match over",
			zap.String("winner_id", winnerID),
			zap.String("reason", reason),
			zap.Int("turns", e.turnNumber),
			zap.Int("events", len(e.allEvents)),
		)
	}
}

// loseLife applies life damage to a player and checks the loss condition.
func (e *Engine) loseLife(p *PlayerState, amount int, sourceID string) {
	if amount <= 0 {
		return
	}
	p.Life -= amount
	if p.Life < 0 {
		p.Life = 0
	}
	e.broadcast(EventLifeDamageDealt, map[string]any{
		"target_player_id": p.PlayerID,
		"damage":           amount,
		"source_card_id":   sourceID,
		"life_remaining":   p.Life,
	})
	if p.Life <= 0 {
		e.endGame(e.Opponent(p.PlayerID).PlayerID, p.PlayerID, ReasonLife)
	}
}

func instanceIDs(cards []*CardInstance) []string {
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.InstanceID)
	}
	return ids
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
