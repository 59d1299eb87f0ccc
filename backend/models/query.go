package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// QueryMode selects the backend endpoint a query is sent to.
type QueryMode string

const (
	// QueryAsk answers a question about the codebase.
	QueryAsk QueryMode = "ask"
	// QuerySuggest asks for concrete code changes.
	QuerySuggest QueryMode = "suggest"
)

// QueryRequest is the body of /query and /suggest-changes.
type QueryRequest struct {
	Query  string    `json:"query"`
	Stream bool      `json:"stream"`
	Mode   QueryMode `json:"-"`
}

// QueryResult is a buffered (non-streamed) answer.
type QueryResult struct {
	Success         bool          `json:"success"`
	Response        string        `json:"response"`
	Error           string        `json:"error,omitempty"`
	Model           string        `json:"model,omitempty"`
	RelevantFiles   RelevantFiles `json:"relevant_files,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// RelevantFiles is the set of source paths the backend associates with an answer.
// On the wire it is either an array of paths or an object keyed by path;
// both decode to an ordered list without duplicates.
type RelevantFiles []string

// UnmarshalJSON accepts an array of paths or an object keyed by path.
func (r *RelevantFiles) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = dedupe(list)
		return nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("relevant_files must be an array or an object: %w", err)
	}
	list = make([]string, 0, len(keyed))
	for path := range keyed {
		list = append(list, path)
	}
	sort.Strings(list)
	*r = list
	return nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok || path == "" {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}
