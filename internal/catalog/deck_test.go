package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deckTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	defs := []CardDefinition{
		{ID: "oshi1", Names: []string{"o"}, CardType: "oshi", Life: 5},
		{ID: "mem1", Names: []string{"m1"}, CardType: "holomem_debut", HP: 50, MaxCopies: UnlimitedCopies},
		{ID: "mem2", Names: []string{"m2"}, CardType: "holomem_debut", HP: 50},
		{ID: "sup1", Names: []string{"s1"}, CardType: "support_item", MaxCopies: 2},
		{ID: "ch1", Names: []string{"c1"}, CardType: "cheer"},
	}
	cat, err := New(defs)
	require.NoError(t, err)
	return cat
}

func validTestDeck() *DeckDescriptor {
	return &DeckDescriptor{
		DeckID:    "d1",
		OshiID:    "oshi1",
		Deck:      map[string]int{"mem1": 44, "mem2": 4, "sup1": 2},
		CheerDeck: map[string]int{"ch1": 20},
	}
}

func TestValidateDeckAccepts(t *testing.T) {
	assert.NoError(t, deckTestCatalog(t).ValidateDeck(validTestDeck()))
}

func TestValidateDeckRejectsUnknownOshi(t *testing.T) {
	desc := validTestDeck()
	desc.OshiID = "nobody"
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestValidateDeckRejectsNonOshiLeader(t *testing.T) {
	desc := validTestDeck()
	desc.OshiID = "mem1"
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestValidateDeckRejectsWrongMainDeckSize(t *testing.T) {
	desc := validTestDeck()
	desc.Deck["mem1"] = 10
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestValidateDeckRejectsWrongCheerDeckSize(t *testing.T) {
	desc := validTestDeck()
	desc.CheerDeck["ch1"] = 19
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestValidateDeckRejectsCopyLimit(t *testing.T) {
	cat := deckTestCatalog(t)

	desc := validTestDeck()
	desc.Deck = map[string]int{"mem1": 41, "mem2": 5, "sup1": 4}
	err := cat.ValidateDeck(desc)
	require.Error(t, err, "mem2 uses the default limit of 4")

	desc.Deck = map[string]int{"mem1": 44, "mem2": 3, "sup1": 3}
	err = cat.ValidateDeck(desc)
	require.Error(t, err, "sup1 declares max_copies 2")
}

func TestValidateDeckRejectsCheerInMainDeck(t *testing.T) {
	desc := validTestDeck()
	desc.Deck = map[string]int{"mem1": 42, "mem2": 4, "sup1": 2, "ch1": 2}
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestValidateDeckRejectsUnknownCard(t *testing.T) {
	desc := validTestDeck()
	desc.Deck["mystery"] = 1
	require.Error(t, deckTestCatalog(t).ValidateDeck(desc))
}

func TestNormalizeDeckNativeFormat(t *testing.T) {
	raw := []byte(`{
		"deck_id": "my_deck",
		"oshi_id": "oshi1",
		"deck": {"mem1": 50},
		"cheer_deck": {"ch1": 20}
	}`)
	desc, err := NormalizeDeck(raw)
	require.NoError(t, err)
	assert.Equal(t, "my_deck", desc.DeckID)
	assert.Equal(t, "oshi1", desc.OshiID)
	assert.Equal(t, 50, desc.Deck["mem1"])
	assert.Equal(t, 20, desc.CheerDeck["ch1"])
}

func TestNormalizeDeckHoloDeltaFormat(t *testing.T) {
	raw := []byte(`{
		"deckName": "imported",
		"oshi": ["oshi1", 0],
		"deck": [["mem1", 46, 0], ["mem1", 2], ["sup1", 2, 1]],
		"cheerDeck": [["ch1", 20, 0]]
	}`)
	desc, err := NormalizeDeck(raw)
	require.NoError(t, err)
	assert.Equal(t, "imported", desc.DeckID)
	assert.Equal(t, "oshi1", desc.OshiID)
	assert.Equal(t, 48, desc.Deck["mem1"], "duplicate entries accumulate")
	assert.Equal(t, 2, desc.Deck["sup1"])
	assert.Equal(t, 20, desc.CheerDeck["ch1"])
}

func TestNormalizeDeckHoloDeltaUnnamed(t *testing.T) {
	raw := []byte(`{"oshi": ["oshi1"], "deck": [], "cheerDeck": []}`)
	desc, err := NormalizeDeck(raw)
	require.NoError(t, err)
	assert.Equal(t, "unknown", desc.DeckID)
}

func TestNormalizeDeckHoloDeltaBadEntry(t *testing.T) {
	raw := []byte(`{"cheerDeck": [["ch1"]], "deck": [], "oshi": ["oshi1"]}`)
	_, err := NormalizeDeck(raw)
	require.Error(t, err)
}

func TestIsHoloDeltaFormat(t *testing.T) {
	assert.True(t, IsHoloDeltaFormat([]byte(`{"cheerDeck": []}`)))
	assert.False(t, IsHoloDeltaFormat([]byte(`{"cheer_deck": {}}`)))
	assert.False(t, IsHoloDeltaFormat([]byte(`not json`)))
}
