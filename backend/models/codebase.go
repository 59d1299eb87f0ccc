package models

// FileContent is the text of one indexed file.
type FileContent struct {
	Path     string `json:"file_path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// SearchMatch is one line that matched a search term.
type SearchMatch struct {
	LineNumber int    `json:"line_number"`
	Line       string `json:"line"`
	Context    string `json:"context"`
}

// SearchResults maps file paths to the matches found in them.
type SearchResults map[string][]SearchMatch

// RelatedFiles describes the import graph around one file.
type RelatedFiles struct {
	File       string   `json:"file"`
	Imports    []string `json:"imports"`
	ImportedBy []string `json:"imported_by"`
}

// FileRelationships counts edges in the backend import graph.
type FileRelationships struct {
	Imports    int `json:"imports"`
	References int `json:"references"`
}

// CodebaseSummary is the backend overview of the indexed codebase.
type CodebaseSummary struct {
	TotalFiles        int               `json:"total_files"`
	Languages         map[string]int    `json:"languages"`
	FileRelationships FileRelationships `json:"file_relationships"`
}
