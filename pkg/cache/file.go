package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tripsnap/api/pkg/logging"
)

const (
	fileCacheVersion = "1.0"
	saveInterval     = 30 * time.Second
)

// FileCache is a MemoryCache that persists its entries to a JSON file.
// Used for development so resolved URLs survive server restarts.
type FileCache struct {
	*MemoryCache
	filePath string

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type fileCacheData struct {
	Entries map[string]*fileCacheEntry `json:"entries"`
	Version string                     `json:"version"`
}

type fileCacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewFileCache creates a new file-based cache with persistence
func NewFileCache(filePath string) (*FileCache, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	fc := &FileCache{
		MemoryCache: NewMemoryCache(),
		filePath:    filePath,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := fc.load(); err != nil {
		logging.Logger.Warn("Failed to load cache from file, starting with empty cache",
			zap.String("file", filePath),
			zap.Error(err))
	}

	go fc.periodicSave()

	return fc, nil
}

// periodicSave saves the cache to disk every saveInterval
func (fc *FileCache) periodicSave() {
	defer close(fc.done)

	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fc.stop:
			return
		case <-ticker.C:
			if err := fc.Save(); err != nil {
				logging.Logger.Warn("Failed to save cache to file",
					zap.String("file", fc.filePath),
					zap.Error(err))
			}
		}
	}
}

// load loads the cache from disk
func (fc *FileCache) load() error {
	data, err := os.ReadFile(fc.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's ok
		}
		return err
	}

	var fileData fileCacheData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := time.Now()
	loaded := 0
	expired := 0

	for key, entry := range fileData.Entries {
		e := &cacheEntry{value: entry.Value, expiresAt: entry.ExpiresAt}
		if e.expired(now) {
			expired++
			continue
		}
		fc.data[key] = e
		loaded++
	}

	logging.Logger.Info("Cache loaded from disk",
		zap.String("file", fc.filePath),
		zap.Int("loaded", loaded),
		zap.Int("expired", expired))

	return nil
}

// Save writes live entries to disk atomically (temp file + rename)
func (fc *FileCache) Save() error {
	fc.mu.RLock()
	fileData := fileCacheData{
		Version: fileCacheVersion,
		Entries: make(map[string]*fileCacheEntry, len(fc.data)),
	}
	now := time.Now()
	for key, entry := range fc.data {
		if entry.expired(now) {
			continue
		}
		fileData.Entries[key] = &fileCacheEntry{
			Value:     entry.value,
			ExpiresAt: entry.expiresAt,
		}
	}
	fc.mu.RUnlock()

	data, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return err
	}

	tempFile := fc.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempFile, fc.filePath); err != nil {
		return err
	}

	logging.Logger.Debug("Cache saved to disk",
		zap.String("file", fc.filePath),
		zap.Int("entries", len(fileData.Entries)))

	return nil
}

// Close stops background work and saves the cache one final time
func (fc *FileCache) Close() error {
	var err error
	fc.closeOnce.Do(func() {
		close(fc.stop)
		<-fc.done
		_ = fc.MemoryCache.Close()
		err = fc.Save()
	})
	return err
}

var _ Cache = (*FileCache)(nil)
