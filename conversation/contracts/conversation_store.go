package contracts

import "github.com/meysamhadeli/codechat/conversation/models"

type IConversationStore interface {
	AppendExchange(userText string) string
	ApplyFragment(turnID string, text string) error
	ApplyRelevantFiles(turnID string, files []string) error
	MarkFailed(turnID string, message string) error
	MarkComplete(turnID string) error
	Turns() []models.ChatTurn
	Turn(turnID string) (models.ChatTurn, bool)
	LastAssistant() (models.ChatTurn, bool)
	Len() int
	Subscribe(listener func(models.TurnChange))
}
