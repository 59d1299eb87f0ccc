package models

// IndexingStats is the per-run summary the backend attaches to its status.
// Every field is optional; the backend sends an empty object until indexing finishes.
type IndexingStats struct {
	TotalFiles   *int           `json:"total_files,omitempty" yaml:"total_files,omitempty"`
	IndexedFiles *int           `json:"indexed_files,omitempty" yaml:"indexed_files,omitempty"`
	SkippedFiles *int           `json:"skipped_files,omitempty" yaml:"skipped_files,omitempty"`
	BinaryFiles  *int           `json:"binary_files,omitempty" yaml:"binary_files,omitempty"`
	ByLanguage   map[string]int `json:"by_language,omitempty" yaml:"by_language,omitempty"`
}

// IndexingStatus is one snapshot of the backend indexing job.
type IndexingStatus struct {
	IsIndexing bool          `json:"is_indexing"`
	Progress   int           `json:"progress"`
	Message    string        `json:"message"`
	Stats      IndexingStats `json:"stats"`
	Error      *string       `json:"error"`
}

// IsComplete reports the unique completion signal: full progress with the job no longer running.
func (s IndexingStatus) IsComplete() bool {
	return s.Progress == 100 && !s.IsIndexing
}

// Failed reports whether the job ended with an error.
func (s IndexingStatus) Failed() bool {
	return s.Error != nil
}

// ErrorMessage returns the job error, or "" when there is none.
func (s IndexingStatus) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}
