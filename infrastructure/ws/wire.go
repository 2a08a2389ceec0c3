package ws

import (
	"direct-chat/domain"
	"direct-chat/domain/event"

	"github.com/samber/lo"
)

// timestampLayout matches what chat clients render directly.
const timestampLayout = "2006-01-02 15:04:05"

// inboundPayload is the only accepted client message shape. Anything
// else is ignored without erroring the connection.
type inboundPayload struct {
	Message string `json:"message"`
}

type historyEntry struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// historyEvent is sent exactly once, immediately after join, before any
// live traffic: the client sees the past, then the future.
type historyEvent struct {
	Type     string         `json:"type"`
	Messages []historyEntry `json:"messages"`
}

// chatEvent is the live broadcast form of one message.
type chatEvent struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func toHistoryEvent(messages []domain.Message) historyEvent {
	entries := lo.Map(messages, func(m domain.Message, _ int) historyEntry {
		return historyEntry{
			Sender:    m.Sender.String(),
			Content:   m.Content,
			Timestamp: m.CreatedAt.Format(timestampLayout),
		}
	})
	if entries == nil {
		entries = []historyEntry{}
	}
	return historyEvent{Type: "history", Messages: entries}
}

func toChatEvent(e event.SanitizedMessage) chatEvent {
	return chatEvent{
		Sender:    e.Sender.String(),
		Message:   e.Content,
		Timestamp: e.At.Format(timestampLayout),
	}
}
