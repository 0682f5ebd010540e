// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Verifies CRUD, ownership scoping, and message ordering against a temp database

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s Store, email string) *User {
	t.Helper()
	user := &User{
		Email:    email,
		Name:     "Test User",
		IsActive: true,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func TestSQLiteStore_ChatLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "chats@example.com")

	chat := &Chat{UserID: user.ID, Title: "New Chat"}
	require.NoError(t, s.CreateChat(ctx, chat))
	require.NotEmpty(t, chat.ID)

	got, err := s.GetChat(ctx, user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Chat", got.Title)
	assert.False(t, got.IsArchived)
	assert.Nil(t, got.FolderID)
	assert.Nil(t, got.AgentID)

	got.Title = "Renamed"
	got.IsArchived = true
	require.NoError(t, s.UpdateChat(ctx, user.ID, got))

	// Archived chats disappear from the listing
	chats, err := s.ListChats(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)

	require.NoError(t, s.DeleteChat(ctx, user.ID, chat.ID))
	_, err = s.GetChat(ctx, user.ID, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ChatOwnershipScoping(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "owner@example.com")
	other := createTestUser(t, s, "other@example.com")

	chat := &Chat{UserID: owner.ID, Title: "Private"}
	require.NoError(t, s.CreateChat(ctx, chat))

	// Foreign chats behave exactly like missing ones
	_, err := s.GetChat(ctx, other.ID, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateChat(ctx, other.ID, &Chat{ID: chat.ID, Title: "hijacked"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteChat(ctx, other.ID, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ListMessages(ctx, other.ID, chat.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CreateMessage(ctx, other.ID, &Message{ChatID: chat.ID, Role: RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_MessagesOrderedAscending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "messages@example.com")

	chat := &Chat{UserID: user.ID, Title: "Ordering"}
	require.NoError(t, s.CreateChat(ctx, chat))

	base := time.Now().UTC().Add(-time.Minute)
	for i, content := range []string{"first", "second", "third"} {
		msg := &Message{
			ChatID:    chat.ID,
			Role:      RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateMessage(ctx, user.ID, msg))
	}

	msgs, err := s.ListMessages(ctx, user.ID, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)

	limited, err := s.ListMessages(ctx, user.ID, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "first", limited[0].Content)
}

func TestSQLiteStore_MessageFlagsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "flags@example.com")

	chat := &Chat{UserID: user.ID, Title: "Flags"}
	require.NoError(t, s.CreateChat(ctx, chat))

	msg := &Message{ChatID: chat.ID, Role: RoleUser, Content: "search this", WebSearch: true, DeepReasoning: true}
	require.NoError(t, s.CreateMessage(ctx, user.ID, msg))

	msgs, err := s.ListMessages(ctx, user.ID, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].WebSearch)
	assert.True(t, msgs[0].DeepReasoning)
}

func TestSQLiteStore_MessageCreationTouchesChat(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "touch@example.com")

	old := &Chat{UserID: user.ID, Title: "Old"}
	require.NoError(t, s.CreateChat(ctx, old))
	time.Sleep(10 * time.Millisecond)
	recent := &Chat{UserID: user.ID, Title: "Recent"}
	require.NoError(t, s.CreateChat(ctx, recent))

	// A new message in the older chat moves it to the top
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.CreateMessage(ctx, user.ID, &Message{ChatID: old.ID, Role: RoleUser, Content: "bump"}))

	chats, err := s.ListChats(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, old.ID, chats[0].ID)
}

func TestSQLiteStore_FolderLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "folders@example.com")

	folder := &Folder{UserID: user.ID, Name: "Work"}
	require.NoError(t, s.CreateFolder(ctx, folder))

	chat := &Chat{UserID: user.ID, Title: "Filed", FolderID: &folder.ID}
	require.NoError(t, s.CreateChat(ctx, chat))

	folders, err := s.ListFolders(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Work", folders[0].Name)

	// Deleting the folder unfiles the chat instead of deleting it
	require.NoError(t, s.DeleteFolder(ctx, user.ID, folder.ID))
	got, err := s.GetChat(ctx, user.ID, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FolderID)
}

func TestSQLiteStore_AgentLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "agents@example.com")

	agent := &Agent{
		UserID:       user.ID,
		Name:         "Translator",
		Description:  "Translates text",
		Instructions: "You are a translator. Translate everything to French.",
	}
	require.NoError(t, s.CreateAgent(ctx, agent))

	got, err := s.GetAgent(ctx, user.ID, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Translator", got.Name)

	got.Instructions = "Translate everything to German."
	require.NoError(t, s.UpdateAgent(ctx, user.ID, got))

	chat := &Chat{UserID: user.ID, Title: "With agent", AgentID: &agent.ID}
	require.NoError(t, s.CreateChat(ctx, chat))

	// Deleting the agent detaches it from chats
	require.NoError(t, s.DeleteAgent(ctx, user.ID, agent.ID))
	reloaded, err := s.GetChat(ctx, user.ID, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.AgentID)
}
