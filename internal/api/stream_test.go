// ABOUTME: Tests for the streaming exchange, cancel, title, and export endpoints
// ABOUTME: Drives the fake transport while requests are in flight

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/store"
)

// streamAsync issues the stream request in a goroutine and returns a channel
// delivering the finished recorder.
func streamAsync(env *testEnv, t *testing.T, token, chatID string, body any) <-chan *httptest.ResponseRecorder {
	t.Helper()
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.request(t, http.MethodPost, "/api/chats/"+chatID+"/messages/stream", token, body)
	}()
	return done
}

func TestStream_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	done := streamAsync(env, t, token, chat.ID, map[string]string{"text": "hello"})

	stream := env.transport.waitForStream(t)
	stream.emit("Hel", "lo ", "world")
	stream.finish()

	rec := <-done
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	// Both turns persisted
	require.Eventually(t, func() bool {
		msgs, err := env.store.ListMessages(context.Background(), user.ID, chat.ID, 0)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Title trigger fired for the first committed exchange
	require.Eventually(t, func() bool {
		c, err := env.store.GetChat(context.Background(), user.ID, chat.ID)
		return err == nil && c.Title == "Generated Title"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	rec := env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/messages/stream", token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/chats/missing/messages/stream", token, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream_BusyConflict(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	done := streamAsync(env, t, token, chat.ID, map[string]string{"text": "first"})
	stream := env.transport.waitForStream(t)
	stream.emit("thinking")

	// Concurrent submit on the same chat is rejected
	rec := env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/messages/stream", token, map[string]string{"text": "second"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	stream.finish()
	<-done
}

func TestStream_ClientDisconnectCancels(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/chats/"+chat.ID+"/messages/stream",
		strings.NewReader(`{"text":"hello"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		env.router.ServeHTTP(httptest.NewRecorder(), req)
	}()

	stream := env.transport.waitForStream(t)
	stream.emit("partial")

	cancel()
	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	sess, ok := env.server.sessions.Get(user.ID, chat.ID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return sess.State() == session.StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	// Partial assistant text never persisted
	time.Sleep(50 * time.Millisecond)
	msgs, err := env.store.ListMessages(context.Background(), user.ID, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestStream_AutoSubmitOnce(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	done := streamAsync(env, t, token, chat.ID, map[string]any{"text": "initial prompt", "auto": true})
	stream := env.transport.waitForStream(t)
	stream.emit("answer")
	stream.finish()

	rec := <-done
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "answer", rec.Body.String())

	// Second auto submission is a no-op
	rec = env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/messages/stream", token,
		map[string]any{"text": "initial prompt", "auto": true})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)

	done := streamAsync(env, t, token, chat.ID, map[string]string{"text": "question"})
	stream := env.transport.waitForStream(t)
	stream.emit("partial")

	rec := env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	<-done

	sess, ok := env.server.sessions.Get(user.ID, chat.ID)
	require.True(t, ok)
	assert.Equal(t, session.StateIdle, sess.State())

	// Cancelling an idle chat is still a 204; unknown chat is a 404
	rec = env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.request(t, http.MethodPost, "/api/chats/missing/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateTitleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)
	require.NoError(t, env.store.CreateMessage(context.Background(), user.ID, &store.Message{
		ChatID: chat.ID, Role: store.RoleUser, Content: "how do tides work?",
	}))

	rec := env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/generate-title", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Generated Title", decodeBody[map[string]string](t, rec)["title"])

	stored, err := env.store.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Generated Title", stored.Title)

	// Unknown chat
	rec = env.request(t, http.MethodPost, "/api/chats/missing/generate-title", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Completion failure surfaces as bad gateway
	env.completer.mu.Lock()
	env.completer.err = assert.AnError
	env.completer.mu.Unlock()
	rec = env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/generate-title", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportChat(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "u@example.com", "")
	chat := env.createChat(t, user.ID)
	require.NoError(t, env.store.CreateMessage(context.Background(), user.ID, &store.Message{
		ChatID: chat.ID, Role: store.RoleUser, Content: "show me <b>bold</b>",
	}))
	require.NoError(t, env.store.CreateMessage(context.Background(), user.ID, &store.Message{
		ChatID: chat.ID, Role: store.RoleAssistant, Content: "Here is **bold** text",
	}))

	rec := env.request(t, http.MethodGet, "/api/chats/"+chat.ID+"/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	// Assistant markdown rendered, user HTML escaped
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.Contains(t, body, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, body, chat.Title)

	// Foreign users cannot export
	_, otherToken := env.createUser(t, "other@example.com", "")
	rec = env.request(t, http.MethodGet, "/api/chats/"+chat.ID+"/export", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
