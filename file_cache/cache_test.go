package file_cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileContent(path, content string) *models.FileContent {
	return &models.FileContent{Path: path, Content: content, Language: "go"}
}

// Test cache manager setup and basic operations
func TestCacheManager_BasicOperations(t *testing.T) {
	cacheManager := NewCacheManager(10)
	require.NotNil(t, cacheManager)

	content, found := cacheManager.GetFileContent("main.go")
	assert.False(t, found)
	assert.Nil(t, content)

	cacheManager.SetFileContent("main.go", fileContent("main.go", "package main"))

	cached, found := cacheManager.GetFileContent("main.go")
	require.True(t, found)
	assert.Equal(t, "package main", cached.Content)

	// Returned values are copies.
	cached.Content = "changed"
	again, _ := cacheManager.GetFileContent("main.go")
	assert.Equal(t, "package main", again.Content)

	cacheManager.Delete("main.go")
	_, found = cacheManager.GetFileContent("main.go")
	assert.False(t, found)
}

func TestCacheManager_OverwriteKeepsSizeAccurate(t *testing.T) {
	cacheManager := NewCacheManager(10)

	cacheManager.SetFileContent("a.go", fileContent("a.go", "12345"))
	cacheManager.SetFileContent("a.go", fileContent("a.go", "12"))

	stats := cacheManager.GetCacheStats()
	assert.Equal(t, 1, stats["cache_files"])
	assert.Equal(t, int64(2), stats["total_size"])
}

func TestCacheManager_EvictsOldestWhenFull(t *testing.T) {
	cacheManager := NewCacheManager(2)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cacheManager.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	cacheManager.SetFileContent("first.go", fileContent("first.go", "1"))
	cacheManager.SetFileContent("second.go", fileContent("second.go", "2"))
	cacheManager.SetFileContent("third.go", fileContent("third.go", "3"))

	_, found := cacheManager.GetFileContent("first.go")
	assert.False(t, found)
	_, found = cacheManager.GetFileContent("second.go")
	assert.True(t, found)
	_, found = cacheManager.GetFileContent("third.go")
	assert.True(t, found)

	perf := cacheManager.GetPerformanceStats()
	assert.Equal(t, int64(1), perf["evictions"])
}

func TestCacheManager_CleanExpiredCache(t *testing.T) {
	cacheManager := NewCacheManager(10)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	cacheManager.now = func() time.Time { return now.Add(-2 * time.Hour) }
	cacheManager.SetFileContent("old.go", fileContent("old.go", "old"))
	cacheManager.now = func() time.Time { return now }
	cacheManager.SetFileContent("new.go", fileContent("new.go", "new"))

	removed := cacheManager.CleanExpiredCache(time.Hour)

	assert.Equal(t, 1, removed)
	_, found := cacheManager.GetFileContent("old.go")
	assert.False(t, found)
	_, found = cacheManager.GetFileContent("new.go")
	assert.True(t, found)
}

func TestCacheManager_Clear(t *testing.T) {
	cacheManager := NewCacheManager(10)
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("file%d.go", i)
		cacheManager.SetFileContent(path, fileContent(path, "x"))
	}

	cacheManager.Clear()

	stats := cacheManager.GetCacheStats()
	assert.Equal(t, 0, stats["cache_files"])
	assert.Equal(t, int64(0), stats["total_size"])
	assert.NotContains(t, stats, "oldest_entry")
}

// Test performance statistics
func TestCacheManager_PerformanceStats(t *testing.T) {
	cacheManager := NewCacheManager(10)
	cacheManager.SetFileContent("a.go", fileContent("a.go", "a"))

	cacheManager.GetFileContent("a.go")
	cacheManager.GetFileContent("a.go")
	cacheManager.GetFileContent("missing.go")

	perf := cacheManager.GetPerformanceStats()
	assert.Equal(t, int64(3), perf["total_requests"])
	assert.Equal(t, int64(2), perf["cache_hits"])
	assert.Equal(t, int64(1), perf["cache_misses"])
	assert.InDelta(t, 66.66, perf["hit_rate_percent"].(float64), 0.1)

	cacheManager.ResetPerformanceStats()
	perf = cacheManager.GetPerformanceStats()
	assert.Equal(t, int64(0), perf["total_requests"])
	assert.Equal(t, 0.0, perf["hit_rate_percent"])
}

// Test concurrent access
func TestCacheManager_ConcurrentAccess(t *testing.T) {
	cacheManager := NewCacheManager(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				path := fmt.Sprintf("worker%d/file%d.go", worker, j%10)
				cacheManager.SetFileContent(path, fileContent(path, "content"))
				cacheManager.GetFileContent(path)
			}
		}(i)
	}
	wg.Wait()

	stats := cacheManager.GetCacheStats()
	assert.LessOrEqual(t, stats["cache_files"].(int), 50)
}
