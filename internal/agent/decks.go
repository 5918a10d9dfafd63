package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"go.uber.org/zap"
)

// DefaultDeckName is the deck an agent falls back to when a requested deck
// cannot be resolved.
const DefaultDeckName = "starter_azki"

// builtinDecks are complete, always-valid lists shipped with the server so
// an automated opponent never depends on deck files being present.
var builtinDecks = map[string]*catalog.DeckDescriptor{
	"starter_sora": {
		DeckID: "starter_sora",
		OshiID: "hSD01-001",
		Deck: map[string]int{
			"hSD01-003": 4, "hSD01-004": 4, "hSD01-005": 4, "hSD01-006": 4,
			"hSD01-007": 2, "hSD01-013": 4, "hSD01-014": 2, "hSD01-015": 4,
			"hSD01-016": 4, "hSD01-017": 4, "hSD01-018": 4, "hSD01-019": 4,
			"hSD01-020": 4, "hSD01-021": 2,
		},
		CheerDeck: map[string]int{"hY01-001": 20},
	},
	"starter_azki": {
		DeckID: "starter_azki",
		OshiID: "hSD01-002",
		Deck: map[string]int{
			"hSD01-008": 4, "hSD01-009": 4, "hSD01-010": 4, "hSD01-011": 4,
			"hSD01-012": 2, "hSD01-013": 4, "hSD01-014": 2, "hSD01-015": 4,
			"hSD01-016": 4, "hSD01-017": 4, "hSD01-018": 4, "hSD01-019": 4,
			"hSD01-020": 4, "hSD01-021": 2,
		},
		CheerDeck: map[string]int{"hY02-001": 20},
	},
}

// DeckSource resolves agent deck names in a fixed order: builtin lists
// first, then JSON files under the configured directory, then the default
// builtin deck. Every resolved deck is validated against the catalog before
// it is handed to a match.
type DeckSource struct {
	catalog *catalog.Catalog
	dir     string
	logger  *zap.Logger
}

// NewDeckSource builds a deck source. dir may be empty to disable the file
// tier.
func NewDeckSource(cat *catalog.Catalog, dir string, logger *zap.Logger) *DeckSource {
	return &DeckSource{catalog: cat, dir: dir, logger: logger}
}

// Resolve returns the validated deck for name, falling back to the default
// deck when name is unknown or its deck fails validation.
func (s *DeckSource) Resolve(name string) (*catalog.DeckDescriptor, error) {
	if name != "" {
		if desc, ok := builtinDecks[name]; ok {
			if err := s.catalog.ValidateDeck(desc); err != nil {
				return nil, fmt.Errorf("builtin deck %s: %w", name, err)
			}
			return desc, nil
		}
		if desc := s.loadFileDeck(name); desc != nil {
			return desc, nil
		}
		if s.logger != nil {
			s.logger.Warn("agent deck not found, using default",
				zap.String("deck", name),
				zap.String("default", DefaultDeckName),
			)
		}
	}
	desc, ok := builtinDecks[DefaultDeckName]
	if !ok {
		return nil, fmt.Errorf("default deck %s is not defined", DefaultDeckName)
	}
	if err := s.catalog.ValidateDeck(desc); err != nil {
		return nil, fmt.Errorf("default deck %s: %w", DefaultDeckName, err)
	}
	return desc, nil
}

// loadFileDeck reads <dir>/<name>.json in either supported deck format.
// Any failure is logged and treated as not-found so resolution can fall
// through to the default.
func (s *DeckSource) loadFileDeck(name string) *catalog.DeckDescriptor {
	if s.dir == "" {
		return nil
	}
	path := filepath.Join(s.dir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	desc, err := catalog.NormalizeDeck(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("agent deck file is malformed",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return nil
	}
	if err := s.catalog.ValidateDeck(desc); err != nil {
		if s.logger != nil {
			s.logger.Warn("agent deck file fails validation",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return nil
	}
	return desc
}
