package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meysamhadeli/codechat/conversation/contracts"
	"github.com/meysamhadeli/codechat/conversation/models"
	"github.com/pterm/pterm"
)

// ErrStaleTurn is returned when a mutation names a turn the store does not hold.
var ErrStaleTurn = errors.New("stale turn id")

var _ contracts.IConversationStore = (*ConversationStore)(nil)

// ConversationStore keeps the ordered, append-only list of chat turns.
// Turns are only ever addressed by id.
type ConversationStore struct {
	mu        sync.Mutex
	turns     []models.ChatTurn
	index     map[string]int
	listeners []func(models.TurnChange)
	logger    *pterm.Logger
	now       func() time.Time
}

// NewConversationStore creates an empty store.
func NewConversationStore(logger *pterm.Logger) *ConversationStore {
	return &ConversationStore{
		index:  make(map[string]int),
		logger: logger,
		now:    time.Now,
	}
}

// AppendExchange adds the user turn and its loading assistant placeholder in one step
// and returns the placeholder's id.
func (s *ConversationStore) AppendExchange(userText string) string {
	s.mu.Lock()
	now := s.now()
	user := models.ChatTurn{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   userText,
		Timestamp: now,
	}
	assistant := models.ChatTurn{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Timestamp: now,
		IsLoading: true,
	}
	s.index[user.ID] = len(s.turns)
	s.turns = append(s.turns, user)
	s.index[assistant.ID] = len(s.turns)
	s.turns = append(s.turns, assistant)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, models.TurnChange{TurnID: user.ID, Kind: models.ChangeAppended, Text: userText})
	notify(listeners, models.TurnChange{TurnID: assistant.ID, Kind: models.ChangeAppended})
	return assistant.ID
}

// ApplyFragment appends text to an assistant turn. Fragments for a failed turn are dropped.
func (s *ConversationStore) ApplyFragment(turnID string, text string) error {
	return s.mutate(turnID, "apply fragment", func(turn *models.ChatTurn) (models.TurnChange, bool) {
		if turn.Failed {
			return models.TurnChange{}, false
		}
		turn.Content += text
		turn.IsLoading = false
		return models.TurnChange{TurnID: turn.ID, Kind: models.ChangeFragment, Text: text}, true
	})
}

// ApplyRelevantFiles replaces the turn's relevant-file set.
func (s *ConversationStore) ApplyRelevantFiles(turnID string, files []string) error {
	return s.mutate(turnID, "apply relevant files", func(turn *models.ChatTurn) (models.TurnChange, bool) {
		turn.RelevantFiles = append([]string{}, files...)
		return models.TurnChange{TurnID: turn.ID, Kind: models.ChangeRelevantFiles, Files: append([]string(nil), files...)}, true
	})
}

// MarkFailed replaces the turn's content with message and ends it.
func (s *ConversationStore) MarkFailed(turnID string, message string) error {
	return s.mutate(turnID, "mark failed", func(turn *models.ChatTurn) (models.TurnChange, bool) {
		turn.Content = message
		turn.IsLoading = false
		turn.Failed = true
		return models.TurnChange{TurnID: turn.ID, Kind: models.ChangeFailed, Text: message}, true
	})
}

// MarkComplete ends the turn, leaving its content as is.
func (s *ConversationStore) MarkComplete(turnID string) error {
	return s.mutate(turnID, "mark complete", func(turn *models.ChatTurn) (models.TurnChange, bool) {
		turn.IsLoading = false
		return models.TurnChange{TurnID: turn.ID, Kind: models.ChangeCompleted}, true
	})
}

func (s *ConversationStore) mutate(turnID, op string, apply func(turn *models.ChatTurn) (models.TurnChange, bool)) error {
	s.mu.Lock()
	i, ok := s.index[turnID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("dropping update for unknown turn", s.logger.Args("op", op, "turn", turnID))
		return fmt.Errorf("%s %s: %w", op, turnID, ErrStaleTurn)
	}
	change, changed := apply(&s.turns[i])
	listeners := s.listeners
	s.mu.Unlock()

	if changed {
		notify(listeners, change)
	} else {
		s.logger.Debug("update ignored", s.logger.Args("op", op, "turn", turnID))
	}
	return nil
}

// Turns returns a copy of the conversation in insertion order.
func (s *ConversationStore) Turns() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]models.ChatTurn, len(s.turns))
	for i, turn := range s.turns {
		turns[i] = turn.Clone()
	}
	return turns
}

func (s *ConversationStore) Turn(turnID string) (models.ChatTurn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[turnID]
	if !ok {
		return models.ChatTurn{}, false
	}
	return s.turns[i].Clone(), true
}

// LastAssistant returns the most recent assistant turn, if any.
func (s *ConversationStore) LastAssistant() (models.ChatTurn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == models.RoleAssistant {
			return s.turns[i].Clone(), true
		}
	}
	return models.ChatTurn{}, false
}

func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Subscribe registers a listener. Listeners run on the mutating goroutine,
// after the store lock is released, in mutation order.
func (s *ConversationStore) Subscribe(listener func(models.TurnChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy so snapshots taken by in-flight mutations stay untouched.
	s.listeners = append(append([]func(models.TurnChange){}, s.listeners...), listener)
}

func notify(listeners []func(models.TurnChange), change models.TurnChange) {
	for _, listener := range listeners {
		listener(change)
	}
}
