package file_cache

import (
	"crypto/md5"
	"fmt"
	"math/rand"
	"testing"

	"github.com/zeebo/xxh3"
)

// BenchmarkCacheKeyGeneration compares md5 with the xxh3 keys the cache uses
func BenchmarkCacheKeyGeneration(b *testing.B) {
	filePaths := make([]string, 1000)
	charset := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789/_-."
	for i := 0; i < 1000; i++ {
		length := rand.Intn(100) + 20
		path := make([]byte, length)
		for j := range path {
			path[j] = charset[rand.Intn(len(charset))]
		}
		filePaths[i] = string(path)
	}

	b.Run("MD5", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = md5.Sum([]byte(filePaths[i%1000]))
		}
	})

	b.Run("XXH3", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = xxh3.HashString(filePaths[i%1000])
		}
	})
}

// BenchmarkCacheLookup measures hits against a warm cache of typical repository paths
func BenchmarkCacheLookup(b *testing.B) {
	realPaths := []string{
		"src/backend/api.py",
		"src/backend/codeindexer.py",
		"src/frontend/src/App.jsx",
		"cmd/chat.go",
		"config/config.go",
		"README.md",
		"go.mod",
		"long/path/to/some/deeply/nested/file/in/a/big/project/structure.go",
	}

	cacheManager := NewCacheManager(len(realPaths))
	for _, path := range realPaths {
		cacheManager.SetFileContent(path, fileContent(path, fmt.Sprintf("// %s", path)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cacheManager.GetFileContent(realPaths[i%len(realPaths)])
	}
}

func TestCacheKeysAreStable(t *testing.T) {
	if generateCacheKey("cmd/chat.go") != generateCacheKey("cmd/chat.go") {
		t.Fatal("cache key must be deterministic")
	}
	if generateCacheKey("a.go") == generateCacheKey("b.go") {
		t.Fatal("distinct paths produced the same key")
	}
}
