package store

import "fmt"

// ConversationStatus is the serving state of a conversation. Changes go
// through the declared transition table; free-form status writes are not
// allowed.
type ConversationStatus string

const (
	ConversationBot    ConversationStatus = "bot"
	ConversationAgent  ConversationStatus = "agent"
	ConversationActive ConversationStatus = "active"
	ConversationIdle   ConversationStatus = "idle"
	ConversationClosed ConversationStatus = "closed"
)

// conversationTransitions declares which status changes are legal.
// Closed is terminal: a closed conversation is never reopened, a new
// session is created instead.
var conversationTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationBot:    {ConversationAgent, ConversationIdle, ConversationClosed},
	ConversationAgent:  {ConversationBot, ConversationIdle, ConversationClosed},
	ConversationActive: {ConversationBot, ConversationAgent, ConversationIdle, ConversationClosed},
	ConversationIdle:   {ConversationBot, ConversationAgent, ConversationActive, ConversationClosed},
	ConversationClosed: {},
}

// CanTransition reports whether a conversation may move from one status to
// another.
func (s ConversationStatus) CanTransition(target ConversationStatus) bool {
	for _, allowed := range conversationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InvalidStatusError is returned when a conversation status change is not
// in the transition table.
type InvalidStatusError struct {
	From ConversationStatus
	To   ConversationStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid conversation status transition: %s -> %s", e.From, e.To)
}
