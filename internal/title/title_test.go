// ABOUTME: Tests for chat title synthesis
// ABOUTME: Covers prompt context, output cleanup, and failure swallowing

package title

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/store"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func seedTitleChat(t *testing.T, contents ...string) (*store.MockStore, *store.User, *store.Chat) {
	t.Helper()
	mock := store.NewMockStore()
	user := &store.User{Email: "u@example.com", Name: "U", IsActive: true}
	require.NoError(t, mock.CreateUser(context.Background(), user))
	chat := &store.Chat{UserID: user.ID, Title: "New Chat"}
	require.NoError(t, mock.CreateChat(context.Background(), chat))

	role := store.RoleUser
	for _, content := range contents {
		require.NoError(t, mock.CreateMessage(context.Background(), user.ID, &store.Message{
			ChatID: chat.ID, Role: role, Content: content,
		}))
		if role == store.RoleUser {
			role = store.RoleAssistant
		} else {
			role = store.RoleUser
		}
	}
	return mock, user, chat
}

func TestSynthesize_StoresCleanedTitle(t *testing.T) {
	mock, user, chat := seedTitleChat(t, "how do tides work?", "Tides are caused by the moon.")
	completer := &fakeCompleter{reply: `  "How Tides Work"  `}
	syn := New(mock, completer, "title-model", true, nil)

	got, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "How Tides Work", got)

	stored, err := mock.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "How Tides Work", stored.Title)

	// Prompt carries role-tagged context lines
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "user: how do tides work?")
	assert.Contains(t, completer.prompts[0], "assistant: Tides are caused by the moon.")
	assert.Contains(t, completer.prompts[0], "max 6 words")
}

func TestSynthesize_TruncatesContext(t *testing.T) {
	long := strings.Repeat("x", 500)
	mock, user, chat := seedTitleChat(t, long, "a", "b", "c", "d", "e", "f")
	completer := &fakeCompleter{reply: "Title"}
	syn := New(mock, completer, "title-model", true, nil)

	_, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)

	prompt := completer.prompts[0]
	// Each message capped at 200 chars
	assert.Contains(t, prompt, "user: "+strings.Repeat("x", 200)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 201))
	// Only the first five messages feed the prompt
	assert.NotContains(t, prompt, ": e\n")
	assert.NotContains(t, prompt, ": f\n")
}

func TestSynthesize_CapsTitleLength(t *testing.T) {
	mock, user, chat := seedTitleChat(t, "hello")
	completer := &fakeCompleter{reply: strings.Repeat("long title ", 30)}
	syn := New(mock, completer, "title-model", true, nil)

	got, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 100)
}

func TestSynthesize_Failures(t *testing.T) {
	t.Run("empty chat", func(t *testing.T) {
		mock, user, chat := seedTitleChat(t)
		syn := New(mock, &fakeCompleter{reply: "Title"}, "m", true, nil)
		_, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
		assert.Error(t, err)
	})

	t.Run("completion error", func(t *testing.T) {
		mock, user, chat := seedTitleChat(t, "hello")
		syn := New(mock, &fakeCompleter{err: errors.New("boom")}, "m", true, nil)
		_, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
		assert.Error(t, err)
	})

	t.Run("blank reply", func(t *testing.T) {
		mock, user, chat := seedTitleChat(t, "hello")
		syn := New(mock, &fakeCompleter{reply: `""`}, "m", true, nil)
		_, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
		assert.Error(t, err)
	})

	t.Run("foreign chat", func(t *testing.T) {
		mock, _, chat := seedTitleChat(t, "hello")
		syn := New(mock, &fakeCompleter{reply: "Title"}, "m", true, nil)
		_, err := syn.Synthesize(context.Background(), "other-user", chat.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("disabled", func(t *testing.T) {
		mock, user, chat := seedTitleChat(t, "hello")
		syn := New(mock, &fakeCompleter{reply: "Title"}, "m", false, nil)
		_, err := syn.Synthesize(context.Background(), user.ID, chat.ID)
		assert.Error(t, err)
	})
}

func TestTrigger_CountsGeneratedTitles(t *testing.T) {
	mock, user, chat := seedTitleChat(t, "hello", "hi there")
	completer := &fakeCompleter{reply: "Friendly Greeting"}
	syn := New(mock, completer, "m", true, nil)

	// The automatic trigger path counts, not just the manual endpoint
	generated := testutil.ToFloat64(metrics.TitlesGenerated)
	syn.Trigger(chat.ID, user.ID)
	assert.Equal(t, generated+1, testutil.ToFloat64(metrics.TitlesGenerated))

	// Failed synthesis does not count
	completer.err = errors.New("boom")
	syn.Trigger(chat.ID, user.ID)
	assert.Equal(t, generated+1, testutil.ToFloat64(metrics.TitlesGenerated))
}

func TestTrigger_SwallowsFailures(t *testing.T) {
	mock, user, chat := seedTitleChat(t, "hello")
	completer := &fakeCompleter{err: errors.New("boom")}
	syn := New(mock, completer, "m", true, nil)

	// Must not panic or propagate; title stays untouched
	syn.Trigger(chat.ID, user.ID)

	stored, err := mock.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Chat", stored.Title)
}

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"Quoted Title"`, "Quoted Title"},
		{`'Single Quoted'`, "Single Quoted"},
		{"  padded  ", "padded"},
		{`" padded quoted "`, "padded quoted"},
		{`"`, `"`},
		{"", ""},
		{`"Mismatched'`, `"Mismatched'`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanTitle(tc.in), "input %q", tc.in)
	}
}
