package archive

import (
	"testing"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/stretchr/testify/require"
)

func TestLayout_Keys(t *testing.T) {
	l := NewLayout("bot/")
	require.Equal(t, "bot/chats/-100.json", l.GroupedKey("-100"))
	require.Equal(t, "bot/history/chat_-100.json", l.LegacyKey("-100"))
	require.Equal(t, "bot/messages/-100/", l.PerMessageRoomPrefix("-100"))
	require.Equal(t, "bot/conversations/", l.SearchPrefix())
}

func TestLayout_RoomFromKeys(t *testing.T) {
	l := NewLayout("")

	id, ok := l.RoomFromGroupedKey("chats/42.json")
	require.True(t, ok)
	require.Equal(t, "42", id)

	_, ok = l.RoomFromGroupedKey("chats/nested/42.json")
	require.False(t, ok)
	_, ok = l.RoomFromGroupedKey("chats/42.txt")
	require.False(t, ok)

	id, ok = l.RoomFromPerMessageKey("messages/-7/1700000000-1.json")
	require.True(t, ok)
	require.Equal(t, "-7", id)

	_, ok = l.RoomFromPerMessageKey("messages/orphan.json")
	require.False(t, ok)

	id, ok = l.RoomFromSearchKey("conversations/9.json")
	require.True(t, ok)
	require.Equal(t, "9", id)
}

func TestValidateRoomID(t *testing.T) {
	require.NoError(t, ValidateRoomID("-1001"))

	var validation *registryblob.ValidationError
	require.ErrorAs(t, ValidateRoomID(""), &validation)
	require.ErrorAs(t, ValidateRoomID("../etc"), &validation)
	require.ErrorAs(t, ValidateRoomID(".."), &validation)
}
