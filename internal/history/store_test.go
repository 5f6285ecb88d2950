package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topchat/pkg/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "archive.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndReadMessages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	msgs := []protocol.ChatMessage{
		{SenderID: 1, RecipientID: protocol.BroadcastID, SenderName: "Alice", Body: "hello"},
		{SenderID: 2, RecipientID: 1, SenderName: "Bob", Body: "hi Alice"},
	}
	for _, msg := range msgs {
		require.NoError(t, store.SaveMessage(ctx, msg))
	}

	stored, err := store.RecentMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	bodies := []string{stored[0].Message.Body, stored[1].Message.Body}
	assert.ElementsMatch(t, []string{"hello", "hi Alice"}, bodies)
	for _, m := range stored {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())
	}
}

func TestRecentMessagesHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveMessage(ctx, protocol.ChatMessage{
			SenderID: 1, SenderName: "Alice", Body: "msg",
		}))
	}

	stored, err := store.RecentMessages(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestSaveAndReadEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEvent(ctx, 7, "connect", "Unknown-7"))
	require.NoError(t, store.SaveEvent(ctx, 7, "rename", "Alice"))
	require.NoError(t, store.SaveEvent(ctx, 8, "connect", "Unknown-8"))
	require.NoError(t, store.SaveEvent(ctx, 7, "disconnect", ""))

	events, err := store.ClientEvents(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 3)

	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Event
	}
	assert.ElementsMatch(t, []string{"connect", "rename", "disconnect"}, kinds)
}

func TestWritesRejectedAfterClose(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "archive.db"), time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.SaveMessage(context.Background(), protocol.ChatMessage{
		SenderID: 1, SenderName: "Alice", Body: "late",
	})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "archive.db"), time.Second)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
