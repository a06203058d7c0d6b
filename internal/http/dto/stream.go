package dto

import (
	"time"

	"parley.app/switchboard/internal/domain"
)

// HistoryFrame is the transcript snapshot written as the second frame of
// an event stream. Live events marshal straight from domain.Event; this
// covers the one frame the stream handler fabricates itself.
type HistoryFrame struct {
	Type      domain.EventType  `json:"type"`
	Messages  []MessageResponse `json:"messages"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewHistoryFrame(messages []domain.TranscriptMessage) HistoryFrame {
	return HistoryFrame{
		Type:      domain.EventTypeHistory,
		Messages:  ToMessageResponses(messages),
		Timestamp: time.Now().UTC(),
	}
}
