package repositories

import (
	"log/slog"
	"testing"
	"time"

	"edu-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func diskMessage(room, author, content string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:         uuid.New(),
		Room:       room,
		Author:     author,
		AuthorName: author,
		Content:    content,
		At:         at,
	}
}

func Test_Record_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	room := "go-101"
	at := time.Now().UTC().Truncate(time.Millisecond)
	diskMessages := []DiskMessage{
		diskMessage(room, "Alice", "anyone stuck on exercise 3?", at),
		diskMessage(room, "Bob", "yes, the recursion part", at.Add(1*time.Minute)),
		diskMessage(room, "Clara", "draw the call tree first", at.Add(2*time.Minute)),
	}

	// When messages are stored
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// Then Recent returns them oldest-to-newest
	fetched, err := repository.Recent(room, 50)
	req.NoError(err)
	req.Equal(diskMessages, fetched)
}

func Test_Recent_Honors_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	room := "go-101"
	at := time.Now().UTC().Truncate(time.Millisecond)

	// Given more messages than the replay window
	var stored []DiskMessage
	for i := 0; i < 5; i++ {
		dm := diskMessage(room, "Alice", "note", at.Add(time.Duration(i)*time.Second))
		req.NoError(repository.StoreMessage(dm))
		stored = append(stored, dm)
	}

	// When fetching with a smaller limit
	fetched, err := repository.Recent(room, 3)
	req.NoError(err)

	// Then only the newest messages come back, still oldest-first
	req.Equal(stored[2:], fetched)
}

func Test_Recent_Empty_Room(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	// When fetching a room nobody wrote to
	fetched, err := repository.Recent("ghost-room", 50)

	// Then there is no error and no messages
	req.NoError(err)
	req.Empty(fetched)
}

func Test_Recent_Ignores_Other_Rooms(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	// Given messages spread over two rooms
	mine := diskMessage("go-101", "Alice", "hello room one", at)
	req.NoError(repository.StoreMessage(mine))
	req.NoError(repository.StoreMessage(diskMessage("maths-2", "Bob", "hello room two", at)))

	// When fetching one room
	fetched, err := repository.Recent("go-101", 50)
	req.NoError(err)

	// Then only its messages come back
	req.Equal([]DiskMessage{mine}, fetched)
}

func Test_StoreMessage_Rejects_Invalid_Records(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	cases := map[string]DiskMessage{
		"missing room":       diskMessage("", "Alice", "hello", at),
		"colon in room":      diskMessage("go:101", "Alice", "hello", at),
		"missing sender":     diskMessage("go-101", "", "hello", at),
		"whitespace content": diskMessage("go-101", "Alice", "   ", at),
	}
	for name, dm := range cases {
		err := repository.StoreMessage(dm)
		req.ErrorIs(err, errors.ErrValidation, name)
	}

	// And nothing was written
	fetched, err := repository.Recent("go-101", 50)
	req.NoError(err)
	req.Empty(fetched)
}

func Test_GetMessages_Paginates_Newest_First(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	room := "go-101"
	at := time.Now().UTC().Truncate(time.Millisecond)

	var stored []DiskMessage
	for i := 0; i < 3; i++ {
		dm := diskMessage(room, "Alice", "note", at.Add(time.Duration(i)*time.Second))
		req.NoError(repository.StoreMessage(dm))
		stored = append(stored, dm)
	}

	// When fetching the first page
	page, cursor, err := repository.GetMessages(room, nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal([]DiskMessage{stored[2], stored[1]}, page)

	// When fetching the next page with the returned cursor
	page, _, err = repository.GetMessages(room, cursor)
	req.NoError(err)
	req.Equal([]DiskMessage{stored[0]}, page)
}
