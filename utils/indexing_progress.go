package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meysamhadeli/codechat/backend/models"
)

// FormatIndexingStatus summarises a status snapshot in one line.
func FormatIndexingStatus(status *models.IndexingStatus) string {
	if status == nil {
		return "Waiting for indexing status..."
	}
	if status.Failed() {
		return fmt.Sprintf("Indexing failed: %s", status.ErrorMessage())
	}

	message := status.Message
	if message == "" {
		message = "Indexing..."
	}
	return fmt.Sprintf("%s (%d%%)", message, status.Progress)
}

// FormatIndexingStats renders the optional per-run stats, skipping absent fields.
func FormatIndexingStats(stats models.IndexingStats) string {
	var parts []string
	add := func(label string, value *int) {
		if value != nil {
			parts = append(parts, fmt.Sprintf("%s: %d", label, *value))
		}
	}
	add("total", stats.TotalFiles)
	add("indexed", stats.IndexedFiles)
	add("skipped", stats.SkippedFiles)
	add("binary", stats.BinaryFiles)

	if len(stats.ByLanguage) > 0 {
		languages := make([]string, 0, len(stats.ByLanguage))
		for language := range stats.ByLanguage {
			languages = append(languages, language)
		}
		sort.Slice(languages, func(i, j int) bool {
			if stats.ByLanguage[languages[i]] != stats.ByLanguage[languages[j]] {
				return stats.ByLanguage[languages[i]] > stats.ByLanguage[languages[j]]
			}
			return languages[i] < languages[j]
		})
		counts := make([]string, len(languages))
		for i, language := range languages {
			counts[i] = fmt.Sprintf("%s %d", language, stats.ByLanguage[language])
		}
		parts = append(parts, "languages: "+strings.Join(counts, ", "))
	}
	return strings.Join(parts, " | ")
}
