package unsend

import (
	"time"

	"github.com/chirino/chat-archive/internal/model"
)

// TimestampTolerance is the window within which a timestamp target matches a
// bot message. The bound is exclusive.
const TimestampTolerance = 5000 * time.Millisecond

// Target identifies the message to unsend. MessageID takes precedence; the
// timestamp is only consulted when no id is given.
type Target struct {
	MessageID *int64     `json:"messageId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Empty reports whether the target names neither an id nor a timestamp.
func (t Target) Empty() bool {
	return t.MessageID == nil && t.Timestamp == nil
}

// Match is a located bot message.
type Match struct {
	Index   int
	Message model.Message
	// Candidates is how many bot messages satisfied the target. Only the
	// timestamp path can produce more than one.
	Candidates int
	ByID       bool
}

// FindBotMessage locates the bot message named by target. Non-bot messages
// never match. When several messages fall inside the timestamp window the
// first one in archive order wins.
func FindBotMessage(messages []model.Message, target Target) (Match, bool) {
	if target.MessageID != nil {
		for i, m := range messages {
			if m.IsBot && m.MessageID != nil && *m.MessageID == *target.MessageID {
				return Match{Index: i, Message: m, Candidates: 1, ByID: true}, true
			}
		}
		return Match{}, false
	}
	if target.Timestamp == nil {
		return Match{}, false
	}

	match := Match{Index: -1}
	for i, m := range messages {
		if !m.IsBot || m.Timestamp.IsZero() {
			continue
		}
		diff := m.Timestamp.Sub(*target.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff >= TimestampTolerance {
			continue
		}
		match.Candidates++
		if match.Index < 0 {
			match.Index = i
			match.Message = m
		}
	}
	if match.Index < 0 {
		return Match{}, false
	}
	return match, true
}
