package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore writes one JSON file per finished match into a directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create match log directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Save writes the record as match_<room>_<timestamp>.json.
func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode match record: %w", err)
	}
	name := fmt.Sprintf("match_%s_%s.json", rec.RoomID, rec.EndedAt.UTC().Format("20060102T150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write match record: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("match record archived",
			zap.String("room_id", rec.RoomID),
			zap.String("path", path),
			zap.Int("events", len(rec.Events)),
		)
	}
	return nil
}
