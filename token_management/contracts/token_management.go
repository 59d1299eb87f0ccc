package contracts

type ITokenManagement interface {
	UsedTokens(inputToken int, outputToken int)
	DisplayTokens(chatModel string)
	TokenSummary(chatModel string) string
	GetCurrentTokenUsage() (total int, input int, output int)
	ClearToken()
}
