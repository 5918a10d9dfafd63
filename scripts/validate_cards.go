// Command validate_cards checks the card data file and any deck lists
// against the engine's rule constructs, so bad data is caught before a
// server deploy instead of at match time.
//
// Usage:
//
//	go run scripts/validate_cards.go -cards data/cards.json -decks data/decks
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
)

func main() {
	cardsPath := flag.String("cards", "data/cards.json", "path to the card data file")
	decksDir := flag.String("decks", "", "optional directory of deck JSON files to validate")
	flag.Parse()

	cat, err := catalog.LoadFile(*cardsPath, nil)
	if err != nil {
		log.Fatalf("card data is invalid: %v", err)
	}
	fmt.Printf("OK: %d cards validated from %s\n", cat.Size(), *cardsPath)

	if *decksDir == "" {
		return
	}
	entries, err := os.ReadDir(*decksDir)
	if err != nil {
		log.Fatalf("cannot read deck directory: %v", err)
	}
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(*decksDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("cannot read %s: %v", path, err)
		}
		deck, err := catalog.NormalizeDeck(raw)
		if err == nil {
			err = cat.ValidateDeck(deck)
		}
		if err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", entry.Name(), err)
			continue
		}
		fmt.Printf("OK   %s (oshi %s)\n", entry.Name(), deck.OshiID)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
