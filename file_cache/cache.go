package file_cache

import (
	"sync"
	"time"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/zeebo/xxh3"
)

const defaultMaxEntries = 200

// CacheEntry represents a cached file with metadata
type CacheEntry struct {
	Path      string
	Data      *models.FileContent
	Timestamp time.Time
	Size      int64
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	TotalRequests int64
	CacheHits     int64
	CacheMisses   int64
	Evictions     int64
	LastResetTime time.Time
	mutex         sync.RWMutex
}

// CacheManager keeps file contents fetched from the backend in memory.
// Nothing is written to disk; the cache lives as long as the session.
type CacheManager struct {
	mutex      sync.RWMutex
	entries    map[uint64]*CacheEntry
	maxEntries int
	totalSize  int64
	stats      *CacheStats
	now        func() time.Time
}

// NewCacheManager creates a cache bounded to maxEntries files.
// A non-positive maxEntries falls back to the default bound.
func NewCacheManager(maxEntries int) *CacheManager {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &CacheManager{
		entries:    make(map[uint64]*CacheEntry),
		maxEntries: maxEntries,
		stats: &CacheStats{
			LastResetTime: time.Now(),
		},
		now: time.Now,
	}
}

// generateCacheKey creates the lookup key for a file path
func generateCacheKey(filePath string) uint64 {
	return xxh3.HashString(filePath)
}

// GetFileContent retrieves cached file content
func (cm *CacheManager) GetFileContent(filePath string) (*models.FileContent, bool) {
	cm.mutex.RLock()
	entry, ok := cm.entries[generateCacheKey(filePath)]
	cm.mutex.RUnlock()

	// A colliding hash for a different path is a miss.
	if !ok || entry.Path != filePath {
		cm.recordCacheMiss()
		return nil, false
	}

	cm.recordCacheHit()
	content := *entry.Data
	return &content, true
}

// SetFileContent stores file content, evicting the oldest entry when full
func (cm *CacheManager) SetFileContent(filePath string, content *models.FileContent) {
	if content == nil {
		return
	}
	stored := *content

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	key := generateCacheKey(filePath)
	if existing, ok := cm.entries[key]; ok {
		cm.totalSize -= existing.Size
	} else if len(cm.entries) >= cm.maxEntries {
		cm.evictOldest()
	}

	entry := &CacheEntry{
		Path:      filePath,
		Data:      &stored,
		Timestamp: cm.now(),
		Size:      int64(len(stored.Content)),
	}
	cm.entries[key] = entry
	cm.totalSize += entry.Size
}

// Delete removes a cache entry
func (cm *CacheManager) Delete(filePath string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	key := generateCacheKey(filePath)
	if entry, ok := cm.entries[key]; ok && entry.Path == filePath {
		cm.totalSize -= entry.Size
		delete(cm.entries, key)
	}
}

// Clear removes all cache entries
func (cm *CacheManager) Clear() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.entries = make(map[uint64]*CacheEntry)
	cm.totalSize = 0
}

// CleanExpiredCache removes cache entries older than maxAge and returns how many were removed
func (cm *CacheManager) CleanExpiredCache(maxAge time.Duration) int {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cutoff := cm.now().Add(-maxAge)
	removed := 0
	for key, entry := range cm.entries {
		if entry.Timestamp.Before(cutoff) {
			cm.totalSize -= entry.Size
			delete(cm.entries, key)
			removed++
		}
	}
	return removed
}

// GetCacheStats returns cache statistics
func (cm *CacheManager) GetCacheStats() map[string]interface{} {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	oldest, newest := time.Time{}, time.Time{}
	for _, entry := range cm.entries {
		if oldest.IsZero() || entry.Timestamp.Before(oldest) {
			oldest = entry.Timestamp
		}
		if entry.Timestamp.After(newest) {
			newest = entry.Timestamp
		}
	}

	stats := map[string]interface{}{
		"cache_files":   len(cm.entries),
		"max_entries":   cm.maxEntries,
		"total_size":    cm.totalSize,
		"total_size_kb": float64(cm.totalSize) / 1024,
	}
	if !oldest.IsZero() {
		stats["oldest_entry"] = oldest.Format(time.RFC3339)
		stats["newest_entry"] = newest.Format(time.RFC3339)
	}
	return stats
}

// evictOldest drops the least recently stored entry. Caller holds the lock.
func (cm *CacheManager) evictOldest() {
	var oldestKey uint64
	var oldest *CacheEntry
	for key, entry := range cm.entries {
		if oldest == nil || entry.Timestamp.Before(oldest.Timestamp) {
			oldestKey, oldest = key, entry
		}
	}
	if oldest == nil {
		return
	}
	cm.totalSize -= oldest.Size
	delete(cm.entries, oldestKey)
	cm.recordEviction()
}
