package token_management

import (
	"fmt"
	"sync"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/token_management/contracts"
)

// TokenManager implementation
type tokenManager struct {
	mu              sync.Mutex
	usedToken       int
	usedInputToken  int
	usedOutputToken int
	requests        int
}

// NewTokenManager creates a new token manager
func NewTokenManager() contracts.ITokenManagement {
	return &tokenManager{}
}

// UsedTokens accumulates the prompt and completion counts reported by the backend.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.usedInputToken += inputToken
	tm.usedOutputToken += outputToken
	tm.usedToken += inputToken + outputToken
	tm.requests++
}

func (tm *tokenManager) TokenSummary(chatModel string) string {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return fmt.Sprintf("Token Used: %d (prompt %d / completion %d) - Requests: %d - Chat Model: %s",
		tm.usedToken, tm.usedInputToken, tm.usedOutputToken, tm.requests, chatModel)
}

func (tm *tokenManager) DisplayTokens(chatModel string) {
	tokenBox := lipgloss.BoxStyle.Render(tm.TokenSummary(chatModel))
	fmt.Println(tokenBox)
}

func (tm *tokenManager) GetCurrentTokenUsage() (total int, input int, output int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.usedToken, tm.usedInputToken, tm.usedOutputToken
}

func (tm *tokenManager) ClearToken() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.usedToken = 0
	tm.usedInputToken = 0
	tm.usedOutputToken = 0
	tm.requests = 0
}
