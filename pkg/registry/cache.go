package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("registry")

// CacheFileName is the liveness-cache file kept under the data directory for
// fast provider discovery fallback across process restarts.
const CacheFileName = "providers.json"

// SaveFile writes the registry contents to the cache file.
func (r *Registry) SaveFile(path string) error {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding liveness cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing liveness cache: %w", err)
	}
	return nil
}

// LoadFile merges cached entries into the registry. A missing file is not an
// error; the cache is best-effort.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading liveness cache: %w", err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decoding liveness cache: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, e := range entries {
		if _, ok := r.entries[addr]; !ok {
			r.entries[addr] = e
		}
	}
	log.Debugf("loaded %d cached providers from %s", len(entries), path)
	return nil
}
