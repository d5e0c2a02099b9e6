package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/foliolabs/foliosync/internal/domain"
)

// Warm-start cache persistence: the in-memory last-known-good cache is
// snapshotted to disk so a restart degrades to stale data instead of an
// empty view until the first sync completes.

// PersistCache writes the current cache to path, atomically via a temp file.
func (o *Orchestrator) PersistCache(path string) error {
	o.mu.RLock()
	snapshot := make(map[string]domain.Portfolio, len(o.cache))
	for id, p := range o.cache {
		snapshot[id] = p
	}
	o.mu.RUnlock()

	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode cache snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize cache snapshot: %w", err)
	}

	o.log.Debug().Int("entries", len(snapshot)).Str("path", path).Msg("Cache snapshot persisted")
	return nil
}

// RestoreCache loads a previously persisted snapshot. A missing file is not
// an error; entries already in the cache are not overwritten (a live sync
// result always beats a stale snapshot).
func (o *Orchestrator) RestoreCache(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	var snapshot map[string]domain.Portfolio
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to decode cache snapshot: %w", err)
	}

	o.mu.Lock()
	restored := 0
	for id, p := range snapshot {
		if _, ok := o.cache[id]; ok {
			continue
		}
		o.cache[id] = p
		restored++
	}
	o.mu.Unlock()

	o.log.Info().Int("entries", restored).Str("path", path).Msg("Cache snapshot restored")
	return nil
}
