package game

import (
	"fmt"
	"math/rand"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
)

// MaxBackstageSize bounds the backstage zone.
const MaxBackstageSize = 5

// CardInstance is one physical card in a match. Instances are owned
// exclusively by the engine's player state and never shared across matches.
type CardInstance struct {
	InstanceID      string
	CardID          string
	Def             *catalog.CardDefinition
	Damage          int
	AttachedCheer   []*CardInstance
	StackedUnder    []*CardInstance // lower-stage cards consumed by blooming
	Resting         bool
	PlacedThisTurn  bool
	BloomedThisTurn bool
}

// RemainingHP returns current HP after damage, clamped at zero.
func (c *CardInstance) RemainingHP() int {
	hp := c.Def.HP - c.Damage
	if hp < 0 {
		return 0
	}
	return hp
}

// CheerColors counts attached cheer by color.
func (c *CardInstance) CheerColors() map[string]int {
	counts := make(map[string]int)
	for _, cheer := range c.AttachedCheer {
		for _, color := range cheer.Def.Colors {
			counts[color]++
		}
	}
	return counts
}

// HasCheerCost reports whether the attached cheer can pay an art cost.
// Colored requirements are matched first; "any" consumes whatever remains.
func (c *CardInstance) HasCheerCost(costs map[string]int) bool {
	available := c.CheerColors()
	remaining := len(c.AttachedCheer)
	for color, need := range costs {
		if color == "any" {
			continue
		}
		if available[color] < need {
			return false
		}
		remaining -= need
	}
	return remaining >= costs["any"]
}

// PlayerState holds one participant's full board. It is mutated only by
// engine effect execution, never by network code.
type PlayerState struct {
	PlayerID string
	Username string

	Oshi *CardInstance
	Life int

	Hand      []*CardInstance
	Deck      []*CardInstance
	CheerDeck []*CardInstance
	Archive   []*CardInstance
	Center    *CardInstance
	Collab    *CardInstance
	Backstage []*CardInstance

	// Holopower is a face-down pile fed from the top of the deck; the
	// counter the protocol reports is its size.
	HolopowerPile []*CardInstance

	mulliganCount int
	nextInstance  int
}

// Holopower returns the player's current holopower counter.
func (p *PlayerState) Holopower() int {
	return len(p.HolopowerPile)
}

// newInstance mints a card instance owned by this player.
func (p *PlayerState) newInstance(def *catalog.CardDefinition) *CardInstance {
	p.nextInstance++
	return &CardInstance{
		InstanceID: fmt.Sprintf("%s_%d", p.PlayerID, p.nextInstance),
		CardID:     def.ID,
		Def:        def,
	}
}

// ShuffleDeck shuffles the main deck with the engine's seeded source.
func (p *PlayerState) ShuffleDeck(rng *rand.Rand) {
	rng.Shuffle(len(p.Deck), func(i, j int) {
		p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i]
	})
}

// ShuffleCheerDeck shuffles the cheer deck.
func (p *PlayerState) ShuffleCheerDeck(rng *rand.Rand) {
	rng.Shuffle(len(p.CheerDeck), func(i, j int) {
		p.CheerDeck[i], p.CheerDeck[j] = p.CheerDeck[j], p.CheerDeck[i]
	})
}

// DrawCards moves up to count cards from deck to hand and returns them.
// The second result is false when the deck ran out before count was reached.
func (p *PlayerState) DrawCards(count int) ([]*CardInstance, bool) {
	drawn := make([]*CardInstance, 0, count)
	for i := 0; i < count; i++ {
		if len(p.Deck) == 0 {
			p.Hand = append(p.Hand, drawn...)
			return drawn, false
		}
		card := p.Deck[0]
		p.Deck = p.Deck[1:]
		drawn = append(drawn, card)
	}
	p.Hand = append(p.Hand, drawn...)
	return drawn, true
}

// ReturnHandToDeck moves the entire hand back into the deck.
func (p *PlayerState) ReturnHandToDeck() {
	p.Deck = append(p.Deck, p.Hand...)
	p.Hand = nil
}

// FindInHand returns the hand card with the given instance id.
func (p *PlayerState) FindInHand(instanceID string) *CardInstance {
	for _, card := range p.Hand {
		if card.InstanceID == instanceID {
			return card
		}
	}
	return nil
}

// RemoveFromHand removes and returns the hand card with the given id.
func (p *PlayerState) RemoveFromHand(instanceID string) *CardInstance {
	for i, card := range p.Hand {
		if card.InstanceID == instanceID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return card
		}
	}
	return nil
}

// HolomemsInPlay returns center, collab and backstage members in stage order.
func (p *PlayerState) HolomemsInPlay() []*CardInstance {
	mems := make([]*CardInstance, 0, MaxBackstageSize+2)
	if p.Center != nil {
		mems = append(mems, p.Center)
	}
	if p.Collab != nil {
		mems = append(mems, p.Collab)
	}
	mems = append(mems, p.Backstage...)
	return mems
}

// FindHolomemInPlay returns the staged holomem with the given instance id.
func (p *PlayerState) FindHolomemInPlay(instanceID string) *CardInstance {
	for _, mem := range p.HolomemsInPlay() {
		if mem.InstanceID == instanceID {
			return mem
		}
	}
	return nil
}

// RemoveFromStage detaches the holomem with the given id from whichever
// stage zone holds it. Returns nil if the id is not staged.
func (p *PlayerState) RemoveFromStage(instanceID string) *CardInstance {
	if p.Center != nil && p.Center.InstanceID == instanceID {
		card := p.Center
		p.Center = nil
		return card
	}
	if p.Collab != nil && p.Collab.InstanceID == instanceID {
		card := p.Collab
		p.Collab = nil
		return card
	}
	for i, mem := range p.Backstage {
		if mem.InstanceID == instanceID {
			p.Backstage = append(p.Backstage[:i], p.Backstage[i+1:]...)
			return mem
		}
	}
	return nil
}

// ReplaceOnStage swaps a staged holomem for another instance in place,
// used by bloom to keep the zone position.
func (p *PlayerState) ReplaceOnStage(old, replacement *CardInstance) bool {
	if p.Center == old {
		p.Center = replacement
		return true
	}
	if p.Collab == old {
		p.Collab = replacement
		return true
	}
	for i, mem := range p.Backstage {
		if mem == old {
			p.Backstage[i] = replacement
			return true
		}
	}
	return false
}

// ArchiveHolomem sends a downed holomem plus everything attached or stacked
// under it to the archive.
func (p *PlayerState) ArchiveHolomem(mem *CardInstance) {
	p.Archive = append(p.Archive, mem.AttachedCheer...)
	p.Archive = append(p.Archive, mem.StackedUnder...)
	mem.AttachedCheer = nil
	mem.StackedUnder = nil
	mem.Damage = 0
	mem.Resting = false
	p.Archive = append(p.Archive, mem)
}

// AllCardIDs returns every instance id across all of this player's zones,
// including attachments and bloomed-under stacks. Used to check card
// conservation.
func (p *PlayerState) AllCardIDs() []string {
	var ids []string
	collect := func(cards []*CardInstance) {
		for _, card := range cards {
			ids = append(ids, card.InstanceID)
			for _, cheer := range card.AttachedCheer {
				ids = append(ids, cheer.InstanceID)
			}
			for _, under := range card.StackedUnder {
				ids = append(ids, under.InstanceID)
			}
		}
	}
	collect(p.Hand)
	collect(p.Deck)
	collect(p.CheerDeck)
	collect(p.Archive)
	collect(p.HolopowerPile)
	collect(p.HolomemsInPlay())
	return ids
}
