package token_management

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenManager_Accumulates(t *testing.T) {
	tm := NewTokenManager()

	tm.UsedTokens(120, 30)
	tm.UsedTokens(80, 20)

	total, input, output := tm.GetCurrentTokenUsage()
	assert.Equal(t, 250, total)
	assert.Equal(t, 200, input)
	assert.Equal(t, 50, output)
	assert.Equal(t, "Token Used: 250 (prompt 200 / completion 50) - Requests: 2 - Chat Model: deepseek-coder", tm.TokenSummary("deepseek-coder"))

	tm.ClearToken()
	total, input, output = tm.GetCurrentTokenUsage()
	assert.Zero(t, total)
	assert.Zero(t, input)
	assert.Zero(t, output)
}

func TestTokenManager_ConcurrentUse(t *testing.T) {
	tm := NewTokenManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.UsedTokens(1, 1)
		}()
	}
	wg.Wait()

	total, _, _ := tm.GetCurrentTokenUsage()
	assert.Equal(t, 40, total)
}
