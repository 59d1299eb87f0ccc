package models

import "time"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of the conversation.
type ChatTurn struct {
	ID            string    `json:"id" yaml:"id"`
	Role          Role      `json:"role" yaml:"role"`
	Content       string    `json:"content" yaml:"content"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	IsLoading     bool      `json:"is_loading" yaml:"is_loading"`
	RelevantFiles []string  `json:"relevant_files,omitempty" yaml:"relevant_files,omitempty"`
	Failed        bool      `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t ChatTurn) Clone() ChatTurn {
	if t.RelevantFiles != nil {
		t.RelevantFiles = append([]string(nil), t.RelevantFiles...)
	}
	return t
}

// ChangeKind says which mutation produced a TurnChange.
type ChangeKind int

const (
	ChangeAppended ChangeKind = iota
	ChangeFragment
	ChangeRelevantFiles
	ChangeFailed
	ChangeCompleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppended:
		return "appended"
	case ChangeFragment:
		return "fragment"
	case ChangeRelevantFiles:
		return "relevant_files"
	case ChangeFailed:
		return "failed"
	case ChangeCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TurnChange is reported to store subscribers after every successful mutation.
// Text carries the fragment for ChangeFragment, the failure message for
// ChangeFailed, and the user text for ChangeAppended.
type TurnChange struct {
	TurnID string
	Kind   ChangeKind
	Text   string
	Files  []string
}
