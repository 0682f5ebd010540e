// ABOUTME: Shared test environment for API handler tests
// ABOUTME: Wires a mock store, fake transport, and real router together

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/packs"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/title"
)

type streamEvent struct {
	frag string
	err  error
}

type fakeStream struct {
	ctx    context.Context
	events chan streamEvent

	closeOnce sync.Once
	closed    chan struct{}
}

func (f *fakeStream) Recv() (string, error) {
	select {
	case ev := <-f.events:
		return ev.frag, ev.err
	case <-f.ctx.Done():
		return "", f.ctx.Err()
	case <-f.closed:
		return "", io.EOF
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeStream) emit(frags ...string) {
	for _, frag := range frags {
		f.events <- streamEvent{frag: frag}
	}
}

func (f *fakeStream) finish() { f.events <- streamEvent{err: io.EOF} }

type fakeTransport struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (t *fakeTransport) StreamChat(ctx context.Context, turns []completion.Turn) (session.Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &fakeStream{
		ctx:    ctx,
		events: make(chan streamEvent, 16),
		closed: make(chan struct{}),
	}
	t.streams = append(t.streams, s)
	return s, nil
}

func (t *fakeTransport) waitForStream(tt *testing.T) *fakeStream {
	tt.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		if len(t.streams) > 0 {
			s := t.streams[len(t.streams)-1]
			t.mu.Unlock()
			return s
		}
		t.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	tt.Fatal("transport stream never opened")
	return nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.err
}

type testEnv struct {
	router    http.Handler
	server    *Server
	store     *store.MockStore
	transport *fakeTransport
	completer *fakeCompleter
	verifier  *auth.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mock := store.NewMockStore()
	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	transport := &fakeTransport{}
	completer := &fakeCompleter{reply: "Generated Title"}
	titles := title.New(mock, completer, "title-model", true, nil)
	sessions := session.NewManager(mock, transport, nil, 5*time.Second, titles.Trigger)

	manifest := &packs.Manifest{Packs: []packs.Pack{
		{Name: "General Assistant", Description: "Everyday helper", Instructions: "Be helpful."},
	}}

	srv := NewServer(Options{
		Store:          mock,
		Verifier:       verifier,
		Sessions:       sessions,
		Titles:         titles,
		Packs:          manifest,
		SessionTTL:     time.Hour,
		MetricsEnabled: false,
	})

	return &testEnv{
		router:    srv.Router(),
		server:    srv,
		store:     mock,
		transport: transport,
		completer: completer,
		verifier:  verifier,
	}
}

// createUser stores a user with the given role name ("" for none) and
// returns the user plus a valid bearer token.
func (e *testEnv) createUser(t *testing.T, email, roleName string) (*store.User, string) {
	t.Helper()

	user := &store.User{Email: email, Name: "Test User", IsActive: true}
	if roleName != "" {
		role, err := e.store.GetRoleByName(context.Background(), roleName)
		require.NoError(t, err)
		user.RoleID = role.ID
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))

	token, err := e.verifier.Generate(user.ID, time.Hour)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) createChat(t *testing.T, userID string) *store.Chat {
	t.Helper()
	chat := &store.Chat{UserID: userID, Title: "New Chat"}
	require.NoError(t, e.store.CreateChat(context.Background(), chat))
	return chat
}

// request performs a JSON request against the router and returns the
// recorder. A nil body sends no payload.
func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
