// Package cache keeps the last fetched dataset on disk as snappy-compressed
// JSON so a run can skip the data service.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

type snapshot struct {
	SavedAt time.Time      `json:"saved_at"`
	Data    domain.Dataset `json:"data"`
}

// Save writes data to path, replacing any previous cache atomically.
func Save(path string, data domain.Dataset) error {
	raw, err := json.Marshal(snapshot{SavedAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, snappy.Encode(nil, raw), 0o644); err != nil {
		return fmt.Errorf("cache: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}

// Load reads the cache at path. A missing file yields domain.ErrCacheMiss.
func Load(path string) (domain.Dataset, time.Time, error) {
	compressed, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("cache %s: %w", path, domain.ErrCacheMiss)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: read: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: decompress: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: unmarshal: %w", err)
	}
	if snap.Data == nil {
		snap.Data = domain.Dataset{}
	}
	return snap.Data, snap.SavedAt, nil
}
