package game

import (
	"testing"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testCards is a compact rules set covering every construct the engine
// resolves: oshi skills, bloom lineages, collab and bloom effects, buzz,
// supports with play requirements, and cheer.
func testCards() []catalog.CardDefinition {
	return []catalog.CardDefinition{
		{
			ID: "oshi1", Names: []string{"oshi_a"}, CardType: "oshi",
			Colors: []string{"white"}, Life: 3,
			OshiSkills: []catalog.SkillDefinition{
				{
					SkillID: "rally", Timing: catalog.TimingOncePerTurn, Cost: 1,
					Effects: []catalog.EffectSpec{{
						Type:       catalog.EffectAddTurnEffect,
						TurnEffect: &catalog.TurnEffectSpec{Source: catalog.TargetCenter, PowerBoost: 50},
					}},
				},
				{
					SkillID: "mend", Timing: catalog.TimingOncePerGame, Cost: 2,
					Effects: []catalog.EffectSpec{{
						Type: catalog.EffectRestoreHP, Target: catalog.TargetCenter,
						Amount: catalog.Amount{All: true},
					}},
				},
			},
		},
		{
			ID: "debut1", Names: []string{"mem_a"}, CardType: "holomem_debut",
			Colors: []string{"white"}, Tags: []string{"#Test"},
			HP: 50, BatonCost: 1, MaxCopies: catalog.UnlimitedCopies,
			Arts: []catalog.ArtDefinition{
				{ArtID: "artA", Power: 30, Costs: map[string]int{"any": 1}},
			},
		},
		{
			ID: "debut2", Names: []string{"mem_b"}, CardType: "holomem_debut",
			Colors: []string{"white"}, Tags: []string{"#Song"},
			HP: 40, BatonCost: 1, MaxCopies: catalog.UnlimitedCopies,
			Effects: []catalog.EffectSpec{
				{Type: catalog.EffectGenerateHolopower, Amount: catalog.Amount{Value: 1}},
			},
			Arts: []catalog.ArtDefinition{
				{ArtID: "artC", Power: 20, Costs: map[string]int{"white": 1}},
			},
		},
		{
			ID: "bloom1a", Names: []string{"mem_a"}, CardType: "holomem_bloom_1",
			Colors: []string{"white"}, HP: 70, BatonCost: 1, MaxCopies: catalog.UnlimitedCopies,
			Effects: []catalog.EffectSpec{
				{Type: catalog.EffectDraw, Amount: catalog.Amount{Value: 1}},
			},
			Arts: []catalog.ArtDefinition{
				{ArtID: "artB", Power: 50, Costs: map[string]int{"white": 1}},
			},
		},
		{
			ID: "bloom2a", Names: []string{"mem_a"}, CardType: "holomem_bloom_2",
			Colors: []string{"white"}, HP: 100, Buzz: true, BatonCost: 2, MaxCopies: catalog.UnlimitedCopies,
			Arts: []catalog.ArtDefinition{
				{ArtID: "artD", Power: 80, Costs: map[string]int{"white": 2}},
			},
		},
		{
			ID: "spot1", Names: []string{"spot_a"}, CardType: "holomem_spot",
			Colors: []string{"white"}, HP: 30, MaxCopies: catalog.UnlimitedCopies,
			Arts: []catalog.ArtDefinition{
				{ArtID: "artE", Power: 10, Costs: map[string]int{"any": 1}},
			},
		},
		{
			ID: "support_draw", Names: []string{"staff_a"}, CardType: "support_staff",
			Limited: true, MaxCopies: catalog.UnlimitedCopies,
			Effects: []catalog.EffectSpec{
				{Type: catalog.EffectDraw, Amount: catalog.Amount{Value: 2}},
			},
		},
		{
			ID: "support_search", Names: []string{"item_a"}, CardType: "support_item",
			MaxCopies: catalog.UnlimitedCopies,
			Effects: []catalog.EffectSpec{
				{
					Type: catalog.EffectChooseCards, From: "deck", LookAt: 3,
					WithTypes: []string{"holomem"}, AmountMin: 0, AmountMax: 1,
					Destination: "hand",
				},
			},
		},
		{
			ID: "support_cheer", Names: []string{"item_b"}, CardType: "support_item",
			MaxCopies: catalog.UnlimitedCopies,
			PlayRequirements: map[string]catalog.PlayRequirement{
				catalog.RequirementCheerToArchiveFromPlay: {
					Length:      1,
					ContentType: catalog.RequirementCheerToArchiveFromPlay,
				},
			},
			Effects: []catalog.EffectSpec{
				{
					Type: catalog.EffectSendCheer, From: "cheer_deck",
					Target: catalog.TargetHolomem, AmountMin: 0, AmountMax: 1,
				},
			},
		},
		{
			ID: "support_cheer2", Names: []string{"item_c"}, CardType: "support_item",
			MaxCopies: catalog.UnlimitedCopies,
			PlayRequirements: map[string]catalog.PlayRequirement{
				catalog.RequirementCheerToArchiveFromPlay: {
					Length:      2,
					ContentType: catalog.RequirementCheerToArchiveFromPlay,
				},
			},
			Effects: []catalog.EffectSpec{
				{Type: catalog.EffectDraw, Amount: catalog.Amount{Value: 1}},
			},
		},
		{
			ID: "cheer_w", Names: []string{"white_cheer"}, CardType: "cheer",
			Colors: []string{"white"}, MaxCopies: catalog.UnlimitedCopies,
		},
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(testCards())
	require.NoError(t, err)
	return cat
}

func testDeck() *catalog.DeckDescriptor {
	return &catalog.DeckDescriptor{
		DeckID: "test_deck",
		OshiID: "oshi1",
		Deck: map[string]int{
			"debut1":       20,
			"debut2":       10,
			"bloom1a":      10,
			"bloom2a":      4,
			"spot1":        2,
			"support_draw": 4,
		},
		CheerDeck: map[string]int{"cheer_w": 20},
	}
}

// newTestEngine builds a two-seat engine with the test catalog.
func newTestEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	e, err := NewEngine(zap.NewNop(), testCatalog(t), "versus_player", []PlayerInfo{
		{PlayerID: "p1", Username: "alpha", Deck: testDeck()},
		{PlayerID: "p2", Username: "beta", Deck: testDeck()},
	}, seed)
	require.NoError(t, err)
	return e
}

// boardEngine skips setup and hand-builds a mid-game board: each player has
// a center and one backstage member, five cheer left in the cheer deck, and
// the rest of their cards in the deck. The active player is seated first.
func boardEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	e := newTestEngine(t, seed)
	for _, p := range e.players {
		p.Life = p.Oshi.Def.Life
		var center, back *CardInstance
		var rest []*CardInstance
		for _, card := range p.Deck {
			switch {
			case center == nil && card.CardID == "debut1":
				center = card
			case back == nil && card.CardID == "debut2":
				back = card
			default:
				rest = append(rest, card)
			}
		}
		require.NotNil(t, center)
		require.NotNil(t, back)
		p.Center = center
		p.Backstage = []*CardInstance{back}
		p.Deck = rest
	}
	e.turnNumber = 2
	e.activeIdx = 0
	e.startingIdx = 1
	return e
}

// pendingEvent returns the decision event the engine is paused on.
func pendingEvent(t *testing.T, e *Engine) Event {
	t.Helper()
	ev, ok := e.PendingDecisionEvent()
	require.True(t, ok, "engine has no pending decision")
	return ev
}

// act submits an action and fails the test if the engine rejected it.
func act(t *testing.T, e *Engine, playerID string, actionType ActionType, data ActionData) {
	t.Helper()
	before := len(e.allEvents)
	e.HandleAction(playerID, actionType, data)
	for _, ev := range e.EventsSince(before) {
		require.NotEqual(t, EventGameError, ev.Type,
			"action %s rejected: %v", actionType, ev.Data)
	}
}

// actExpectError submits an action and requires a game_error event.
func actExpectError(t *testing.T, e *Engine, playerID string, actionType ActionType, data ActionData) {
	t.Helper()
	before := len(e.allEvents)
	e.HandleAction(playerID, actionType, data)
	found := false
	for _, ev := range e.EventsSince(before) {
		if ev.Type == EventGameError {
			found = true
		}
	}
	require.True(t, found, "expected action %s to be rejected", actionType)
}

// giveCheer attaches n white cheer instances to a staged holomem, minting
// them from the cheer deck so conservation checks stay balanced.
func giveCheer(t *testing.T, p *PlayerState, mem *CardInstance, n int) {
	t.Helper()
	require.GreaterOrEqual(t, len(p.CheerDeck), n)
	for i := 0; i < n; i++ {
		cheer := p.CheerDeck[0]
		p.CheerDeck = p.CheerDeck[1:]
		mem.AttachedCheer = append(mem.AttachedCheer, cheer)
	}
}

// addToHand moves the first matching deck card into the player's hand.
func addToHand(t *testing.T, p *PlayerState, cardID string) *CardInstance {
	t.Helper()
	for i, card := range p.Deck {
		if card.CardID == cardID {
			p.Deck = append(p.Deck[:i], p.Deck[i+1:]...)
			p.Hand = append(p.Hand, card)
			return card
		}
	}
	t.Fatalf("no %s left in deck", cardID)
	return nil
}

// totalCards counts every instance a player owns across all zones.
func totalCards(p *PlayerState) int {
	return len(p.AllCardIDs())
}

// mustLookup fetches a card definition from the engine's catalog.
func mustLookup(t *testing.T, e *Engine, cardID string) *catalog.CardDefinition {
	t.Helper()
	def, ok := e.catalog.Lookup(cardID)
	require.True(t, ok, "catalog is missing %s", cardID)
	return def
}
