package catalog

import (
	"encoding/json"
	"fmt"
)

// Deck size rules for a standard match.
const (
	MainDeckSize     = 50
	CheerDeckSize    = 20
	DefaultCopyLimit = 4
	UnlimitedCopies  = -1
)

// DeckDescriptor is the normalized deck list consumed by deck validation
// and the match engine.
type DeckDescriptor struct {
	DeckID    string         `json:"deck_id"`
	OshiID    string         `json:"oshi_id"`
	Deck      map[string]int `json:"deck"`
	CheerDeck map[string]int `json:"cheer_deck"`
}

// IsHoloDeltaFormat reports whether raw deck JSON uses the holoDelta layout.
func IsHoloDeltaFormat(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe["cheerDeck"]
	return ok
}

// NormalizeDeck parses raw deck JSON in either the native descriptor format
// or the holoDelta import format.
func NormalizeDeck(raw []byte) (*DeckDescriptor, error) {
	if !IsHoloDeltaFormat(raw) {
		var desc DeckDescriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			return nil, fmt.Errorf("failed to parse deck: %w", err)
		}
		return &desc, nil
	}

	// holoDelta exports are positional arrays with an alternate-art flag
	// this server ignores.
	var hd struct {
		DeckName  string              `json:"deckName"`
		Oshi      []json.RawMessage   `json:"oshi"`
		Deck      [][]json.RawMessage `json:"deck"`
		CheerDeck [][]json.RawMessage `json:"cheerDeck"`
	}
	if err := json.Unmarshal(raw, &hd); err != nil {
		return nil, fmt.Errorf("failed to parse holoDelta deck: %w", err)
	}

	desc := &DeckDescriptor{
		DeckID:    hd.DeckName,
		Deck:      make(map[string]int),
		CheerDeck: make(map[string]int),
	}
	if desc.DeckID == "" {
		desc.DeckID = "unknown"
	}

	if len(hd.Oshi) >= 1 {
		if err := json.Unmarshal(hd.Oshi[0], &desc.OshiID); err != nil {
			return nil, fmt.Errorf("holoDelta deck: bad oshi entry: %w", err)
		}
	}
	for _, entry := range hd.Deck {
		id, count, err := parseDeckEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("holoDelta deck: %w", err)
		}
		desc.Deck[id] += count
	}
	for _, entry := range hd.CheerDeck {
		id, count, err := parseDeckEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("holoDelta cheer deck: %w", err)
		}
		desc.CheerDeck[id] += count
	}
	return desc, nil
}

// parseDeckEntry decodes [card_id, count, altFlag?]; the alt flag is ignored.
func parseDeckEntry(entry []json.RawMessage) (string, int, error) {
	if len(entry) < 2 {
		return "", 0, fmt.Errorf("deck entry needs at least id and count")
	}
	var id string
	if err := json.Unmarshal(entry[0], &id); err != nil {
		return "", 0, fmt.Errorf("bad card id: %w", err)
	}
	var count int
	if err := json.Unmarshal(entry[1], &count); err != nil {
		return "", 0, fmt.Errorf("bad card count: %w", err)
	}
	return id, count, nil
}

// ValidateDeck checks a normalized deck against the catalog: known ids only,
// correct kinds, exact deck sizes, and per-card copy limits. Unknown card ids
// are rejected here so they never surface mid-match.
func (c *Catalog) ValidateDeck(desc *DeckDescriptor) error {
	oshi, ok := c.Lookup(desc.OshiID)
	if !ok {
		return fmt.Errorf("unknown oshi card %s", desc.OshiID)
	}
	if oshi.Kind() != KindOshi {
		return fmt.Errorf("card %s is not an oshi", desc.OshiID)
	}

	total := 0
	for id, count := range desc.Deck {
		def, ok := c.Lookup(id)
		if !ok {
			return fmt.Errorf("unknown card %s in deck", id)
		}
		kind := def.Kind()
		if kind != KindHolomem && kind != KindSupport {
			return fmt.Errorf("card %s cannot be in the main deck", id)
		}
		limit := def.MaxCopies
		if limit == 0 {
			limit = DefaultCopyLimit
		}
		if limit != UnlimitedCopies && count > limit {
			return fmt.Errorf("too many copies of %s: %d > %d", id, count, limit)
		}
		if count <= 0 {
			return fmt.Errorf("non-positive count for %s", id)
		}
		total += count
	}
	if total != MainDeckSize {
		return fmt.Errorf("main deck must have %d cards, got %d", MainDeckSize, total)
	}

	cheerTotal := 0
	for id, count := range desc.CheerDeck {
		def, ok := c.Lookup(id)
		if !ok {
			return fmt.Errorf("unknown card %s in cheer deck", id)
		}
		if def.Kind() != KindCheer {
			return fmt.Errorf("card %s is not a cheer card", id)
		}
		if count <= 0 {
			return fmt.Errorf("non-positive count for %s", id)
		}
		cheerTotal += count
	}
	if cheerTotal != CheerDeckSize {
		return fmt.Errorf("cheer deck must have %d cards, got %d", CheerDeckSize, cheerTotal)
	}

	return nil
}
