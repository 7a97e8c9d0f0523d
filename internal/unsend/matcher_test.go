package unsend

import (
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/model"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestFindBotMessage_ByID(t *testing.T) {
	messages := []model.Message{
		{Text: "user", MessageID: model.Int64Ptr(7), IsBot: false},
		{Text: "bot", MessageID: model.Int64Ptr(8), IsBot: true},
	}

	m, ok := FindBotMessage(messages, Target{MessageID: model.Int64Ptr(8)})
	require.True(t, ok)
	require.Equal(t, 1, m.Index)
	require.True(t, m.ByID)
	require.Equal(t, 1, m.Candidates)
}

func TestFindBotMessage_IDNeverMatchesUserMessage(t *testing.T) {
	messages := []model.Message{
		{Text: "user", MessageID: model.Int64Ptr(7), IsBot: false, Timestamp: base},
	}

	_, ok := FindBotMessage(messages, Target{MessageID: model.Int64Ptr(7)})
	require.False(t, ok)
}

func TestFindBotMessage_IDDoesNotFallBackToTimestamp(t *testing.T) {
	messages := []model.Message{
		{Text: "bot", MessageID: model.Int64Ptr(1), IsBot: true, Timestamp: base},
	}

	_, ok := FindBotMessage(messages, Target{MessageID: model.Int64Ptr(2), Timestamp: at(0)})
	require.False(t, ok)
}

func TestFindBotMessage_TimestampTolerance(t *testing.T) {
	messages := []model.Message{{Text: "bot", IsBot: true, Timestamp: base}}

	tests := []struct {
		name   string
		offset time.Duration
		match  bool
	}{
		{"exact", 0, true},
		{"4999ms after", 4999 * time.Millisecond, true},
		{"4999ms before", -4999 * time.Millisecond, true},
		{"5000ms after", 5000 * time.Millisecond, false},
		{"5001ms after", 5001 * time.Millisecond, false},
		{"5001ms before", -5001 * time.Millisecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FindBotMessage(messages, Target{Timestamp: at(tt.offset)})
			require.Equal(t, tt.match, ok)
		})
	}
}

func TestFindBotMessage_TimestampSkipsUserMessages(t *testing.T) {
	messages := []model.Message{
		{Text: "user", IsBot: false, Timestamp: base},
		{Text: "bot", IsBot: true, Timestamp: base.Add(3 * time.Second)},
	}

	m, ok := FindBotMessage(messages, Target{Timestamp: at(0)})
	require.True(t, ok)
	require.Equal(t, 1, m.Index)
	require.False(t, m.ByID)
}

func TestFindBotMessage_FirstCandidateWins(t *testing.T) {
	messages := []model.Message{
		{Text: "first", IsBot: true, Timestamp: base.Add(2 * time.Second)},
		{Text: "closer", IsBot: true, Timestamp: base},
		{Text: "far", IsBot: true, Timestamp: base.Add(time.Minute)},
	}

	m, ok := FindBotMessage(messages, Target{Timestamp: at(0)})
	require.True(t, ok)
	require.Equal(t, 0, m.Index)
	require.Equal(t, 2, m.Candidates)
}

func TestFindBotMessage_EmptyTarget(t *testing.T) {
	messages := []model.Message{{Text: "bot", IsBot: true, MessageID: model.Int64Ptr(1), Timestamp: base}}

	_, ok := FindBotMessage(messages, Target{})
	require.False(t, ok)
	require.True(t, Target{}.Empty())
}
