package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// CardKind is the broad card category.
type CardKind string

const (
	KindOshi    CardKind = "oshi"
	KindHolomem CardKind = "holomem"
	KindSupport CardKind = "support"
	KindCheer   CardKind = "cheer"
)

// BloomLevel is the stage of a holomem card within its lineage.
type BloomLevel string

const (
	BloomNone   BloomLevel = ""
	BloomDebut  BloomLevel = "debut"
	BloomFirst  BloomLevel = "1"
	BloomSecond BloomLevel = "2"
	BloomSpot   BloomLevel = "spot"
)

// cardTypeInfo maps the raw card_type strings in the data files to kind,
// bloom level and support type.
var cardTypeInfo = map[string]struct {
	kind        CardKind
	bloom       BloomLevel
	supportType string
}{
	"oshi":            {kind: KindOshi},
	"holomem_debut":   {kind: KindHolomem, bloom: BloomDebut},
	"holomem_bloom_1": {kind: KindHolomem, bloom: BloomFirst},
	"holomem_bloom_2": {kind: KindHolomem, bloom: BloomSecond},
	"holomem_spot":    {kind: KindHolomem, bloom: BloomSpot},
	"support_event":   {kind: KindSupport, supportType: "event"},
	"support_item":    {kind: KindSupport, supportType: "item"},
	"support_staff":   {kind: KindSupport, supportType: "staff"},
	"cheer":           {kind: KindCheer},
}

// ArtDefinition is one attack a holomem can perform.
type ArtDefinition struct {
	ArtID   string         `json:"art_id"`
	Power   int            `json:"power"`
	Costs   map[string]int `json:"costs"` // color name or "any" -> cheer count
	Effects []EffectSpec   `json:"effects,omitempty"`
}

// Skill timings for oshi skills.
const (
	TimingOncePerTurn = "once_per_turn"
	TimingOncePerGame = "once_per_game"
)

// SkillDefinition is an activatable oshi skill.
type SkillDefinition struct {
	SkillID string       `json:"skill_id"`
	Timing  string       `json:"timing"`
	Cost    int          `json:"cost"` // holopower
	Effects []EffectSpec `json:"effects,omitempty"`
}

// PlayRequirement is an extra payload a support card demands before it
// resolves, e.g. cheer to archive from play.
type PlayRequirement struct {
	Length      int    `json:"length"`
	ContentType string `json:"content_type"`
}

// CardDefinition is the immutable rules data for one card id.
type CardDefinition struct {
	ID        string   `json:"card_id"`
	Names     []string `json:"card_names"`
	CardType  string   `json:"card_type"`
	Colors    []string `json:"colors,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	HP        int      `json:"hp,omitempty"`
	Life      int      `json:"life,omitempty"` // oshi only
	Buzz      bool     `json:"buzz,omitempty"`
	BatonCost int      `json:"baton_cost,omitempty"`
	MaxCopies int      `json:"max_copies,omitempty"` // 0 = default 4, -1 = unlimited
	Limited   bool     `json:"limited,omitempty"`    // support: one per turn

	Arts             []ArtDefinition            `json:"arts,omitempty"`
	OshiSkills       []SkillDefinition          `json:"oshi_skills,omitempty"`
	Effects          []EffectSpec               `json:"effects,omitempty"`
	PlayRequirements map[string]PlayRequirement `json:"play_requirements,omitempty"`
}

// Kind returns the broad card category.
func (d *CardDefinition) Kind() CardKind {
	return cardTypeInfo[d.CardType].kind
}

// Bloom returns the bloom level, or BloomNone for non-holomem cards.
func (d *CardDefinition) Bloom() BloomLevel {
	return cardTypeInfo[d.CardType].bloom
}

// SupportType returns the support subtype ("event", "item", "staff").
func (d *CardDefinition) SupportType() string {
	return cardTypeInfo[d.CardType].supportType
}

// IsDebutOrSpot reports whether the card may be placed directly on stage.
func (d *CardDefinition) IsDebutOrSpot() bool {
	b := d.Bloom()
	return b == BloomDebut || b == BloomSpot
}

// SharesName reports whether two definitions belong to the same lineage.
func (d *CardDefinition) SharesName(other *CardDefinition) bool {
	for _, a := range d.Names {
		for _, b := range other.Names {
			if a == b {
				return true
			}
		}
	}
	return false
}

func (d *CardDefinition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("card with empty id")
	}
	info, ok := cardTypeInfo[d.CardType]
	if !ok {
		return fmt.Errorf("card %s: unknown card_type %q", d.ID, d.CardType)
	}
	if info.kind == KindHolomem && d.HP <= 0 {
		return fmt.Errorf("card %s: holomem requires positive hp", d.ID)
	}
	if info.kind == KindOshi && d.Life <= 0 {
		return fmt.Errorf("card %s: oshi requires positive life", d.ID)
	}
	for i := range d.Arts {
		for j := range d.Arts[i].Effects {
			if err := d.Arts[i].Effects[j].Validate(); err != nil {
				return fmt.Errorf("card %s art %s: %w", d.ID, d.Arts[i].ArtID, err)
			}
		}
	}
	for i := range d.OshiSkills {
		s := &d.OshiSkills[i]
		if s.Timing != TimingOncePerTurn && s.Timing != TimingOncePerGame {
			return fmt.Errorf("card %s skill %s: unknown timing %q", d.ID, s.SkillID, s.Timing)
		}
		for j := range s.Effects {
			if err := s.Effects[j].Validate(); err != nil {
				return fmt.Errorf("card %s skill %s: %w", d.ID, s.SkillID, err)
			}
		}
	}
	for i := range d.Effects {
		if err := d.Effects[i].Validate(); err != nil {
			return fmt.Errorf("card %s: %w", d.ID, err)
		}
	}
	for name, req := range d.PlayRequirements {
		if req.ContentType != RequirementCheerToArchiveFromPlay {
			return fmt.Errorf("card %s: unknown play requirement content type %q", d.ID, req.ContentType)
		}
		if name != req.ContentType {
			return fmt.Errorf("card %s: play requirement key %q must match its content type", d.ID, name)
		}
	}
	return nil
}

// Catalog is the immutable card lookup shared read-only by all rooms.
type Catalog struct {
	cards map[string]*CardDefinition
}

// New builds a catalog from definitions, validating every card, effect and
// condition up front so rule constructs the engine cannot resolve are
// rejected before any match starts.
func New(defs []CardDefinition) (*Catalog, error) {
	cards := make(map[string]*CardDefinition, len(defs))
	for i := range defs {
		d := defs[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := cards[d.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %s", d.ID)
		}
		cards[d.ID] = &d
	}
	return &Catalog{cards: cards}, nil
}

// LoadFile reads a JSON array of card definitions from disk.
func LoadFile(path string, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card data: %w", err)
	}
	var defs []CardDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse card data: %w", err)
	}
	cat, err := New(defs)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("card catalog loaded",
			zap.String("path", path),
			zap.Int("cards", len(defs)),
		)
	}
	return cat, nil
}

// Lookup returns the definition for a card id.
func (c *Catalog) Lookup(id string) (*CardDefinition, bool) {
	def, ok := c.cards[id]
	return def, ok
}

// Size returns the number of known card definitions.
func (c *Catalog) Size() int {
	return len(c.cards)
}
