package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validHolomem(id string) CardDefinition {
	return CardDefinition{
		ID: id, Names: []string{"mem"}, CardType: "holomem_debut",
		Colors: []string{"white"}, HP: 50,
	}
}

func TestNewRejectsUnknownCardType(t *testing.T) {
	_, err := New([]CardDefinition{
		{ID: "x1", CardType: "holomem_bloom_9", HP: 50},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown card_type")
}

func TestNewRejectsHolomemWithoutHP(t *testing.T) {
	bad := validHolomem("x1")
	bad.HP = 0
	_, err := New([]CardDefinition{bad})
	require.Error(t, err)
}

func TestNewRejectsOshiWithoutLife(t *testing.T) {
	_, err := New([]CardDefinition{
		{ID: "x1", CardType: "oshi"},
	})
	require.Error(t, err)
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]CardDefinition{validHolomem("x1"), validHolomem("x1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate card id")
}

func TestNewRejectsUnknownEffectType(t *testing.T) {
	bad := validHolomem("x1")
	bad.Effects = []EffectSpec{{Type: "steal_cards"}}
	_, err := New([]CardDefinition{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown effect type")
}

func TestNewRejectsUnknownSkillTiming(t *testing.T) {
	_, err := New([]CardDefinition{{
		ID: "x1", CardType: "oshi", Life: 5,
		OshiSkills: []SkillDefinition{{SkillID: "sk", Timing: "whenever"}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown timing")
}

func TestNewRejectsMismatchedPlayRequirementKey(t *testing.T) {
	_, err := New([]CardDefinition{{
		ID: "x1", CardType: "support_item",
		PlayRequirements: map[string]PlayRequirement{
			"wrong_key": {Length: 1, ContentType: RequirementCheerToArchiveFromPlay},
		},
	}})
	require.Error(t, err)
}

func TestKindAndBloomMapping(t *testing.T) {
	tests := []struct {
		cardType string
		kind     CardKind
		bloom    BloomLevel
	}{
		{"oshi", KindOshi, BloomNone},
		{"holomem_debut", KindHolomem, BloomDebut},
		{"holomem_bloom_1", KindHolomem, BloomFirst},
		{"holomem_bloom_2", KindHolomem, BloomSecond},
		{"holomem_spot", KindHolomem, BloomSpot},
		{"support_item", KindSupport, BloomNone},
		{"support_staff", KindSupport, BloomNone},
		{"cheer", KindCheer, BloomNone},
	}
	for _, tt := range tests {
		def := CardDefinition{CardType: tt.cardType}
		assert.Equal(t, tt.kind, def.Kind(), tt.cardType)
		assert.Equal(t, tt.bloom, def.Bloom(), tt.cardType)
	}
}

func TestIsDebutOrSpot(t *testing.T) {
	assert.True(t, (&CardDefinition{CardType: "holomem_debut"}).IsDebutOrSpot())
	assert.True(t, (&CardDefinition{CardType: "holomem_spot"}).IsDebutOrSpot())
	assert.False(t, (&CardDefinition{CardType: "holomem_bloom_1"}).IsDebutOrSpot())
	assert.False(t, (&CardDefinition{CardType: "support_item"}).IsDebutOrSpot())
}

func TestSharesName(t *testing.T) {
	a := &CardDefinition{Names: []string{"sora"}}
	b := &CardDefinition{Names: []string{"sora", "soraz"}}
	c := &CardDefinition{Names: []string{"azki"}}
	assert.True(t, a.SharesName(b))
	assert.False(t, a.SharesName(c))
}

func TestLoadFileParsesShippedCardSet(t *testing.T) {
	cat, err := LoadFile(filepath.Join("..", "..", "data", "cards.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Greater(t, cat.Size(), 20)

	oshi, ok := cat.Lookup("hSD01-001")
	require.True(t, ok)
	assert.Equal(t, KindOshi, oshi.Kind())
	assert.Greater(t, oshi.Life, 0)
}

func TestLoadFileMissingPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	require.Error(t, err)
}
