// ABOUTME: Manager owns one session per open chat, keyed by chat ID
// ABOUTME: Opening a session verifies ownership and seeds it with persisted history

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/store"
)

// ManagerStore defines what the manager needs from storage.
type ManagerStore interface {
	MessageStore
	GetChat(ctx context.Context, userID, chatID string) (*store.Chat, error)
	ListMessages(ctx context.Context, userID, chatID string, limit int) ([]*store.Message, error)
	GetAgent(ctx context.Context, userID, agentID string) (*store.Agent, error)
}

// Manager tracks live sessions. Sessions for different chats are fully
// independent; each chat has at most one session at a time.
type Manager struct {
	store       ManagerStore
	transport   Transport
	logger      *slog.Logger
	idleTimeout time.Duration
	titleFn     TitleFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(st ManagerStore, transport Transport, logger *slog.Logger, idleTimeout time.Duration, titleFn TitleFunc) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:       st,
		transport:   transport,
		logger:      logger.With("component", "session_manager"),
		idleTimeout: idleTimeout,
		titleFn:     titleFn,
		sessions:    make(map[string]*Session),
	}
}

// Open returns the live session for a chat, creating and seeding one from
// persisted history if needed. Ownership is enforced: a chat belonging to
// another user behaves as not found.
func (m *Manager) Open(ctx context.Context, userID, chatID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[chatID]; ok {
		if sess.userID != userID {
			m.mu.Unlock()
			return nil, store.ErrNotFound
		}
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	chat, err := m.store.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	history, err := m.store.ListMessages(ctx, userID, chatID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	var agentPrompt string
	if chat.AgentID != nil {
		agent, err := m.store.GetAgent(ctx, userID, *chat.AgentID)
		if err == nil {
			agentPrompt = agent.Instructions
		} else if err != store.ErrNotFound {
			return nil, fmt.Errorf("loading agent: %w", err)
		}
	}

	sess := New(Config{
		ChatID:      chatID,
		UserID:      userID,
		AgentPrompt: agentPrompt,
		Store:       m.store,
		Transport:   m.transport,
		Logger:      m.logger,
		IdleTimeout: m.idleTimeout,
		TitleFn:     m.titleFn,
		Seed:        history,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have opened the session while we were loading.
	if existing, ok := m.sessions[chatID]; ok {
		return existing, nil
	}
	m.sessions[chatID] = sess
	m.logger.Debug("session opened", "chat_id", chatID, "seed_messages", len(history))
	return sess, nil
}

// Get returns the live session for a chat without creating one.
func (m *Manager) Get(userID, chatID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok || sess.userID != userID {
		return nil, false
	}
	return sess, true
}

// Close cancels any in-flight exchange and drops the session.
func (m *Manager) Close(chatID string) {
	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	delete(m.sessions, chatID)
	m.mu.Unlock()
	if ok {
		sess.Cancel()
		m.logger.Debug("session closed", "chat_id", chatID)
	}
}
