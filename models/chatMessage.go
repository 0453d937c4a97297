package models

import "time"

type ChatMessageType string

const (
	ChatMessageText   ChatMessageType = "TEXT"
	ChatMessageTyping ChatMessageType = "TYPING"
	ChatMessageRead   ChatMessageType = "READ"
)

// ChatMessage is the frame exchanged over the messaging channel. Typing and
// read receipts reuse the same envelope with an empty body.
type ChatMessage struct {
	ID             string          `json:"id"`
	Type           ChatMessageType `json:"type"`
	ConversationId string          `json:"conversation_id"`
	SenderId       string          `json:"sender_id"`
	Body           string          `json:"body,omitempty"`
	ReadMessageIds []string        `json:"read_message_ids,omitempty"`
	SentAt         time.Time       `json:"sent_at"`
}
