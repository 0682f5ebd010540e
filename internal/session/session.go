// ABOUTME: Session is the per-chat conversation state machine
// ABOUTME: Drives submit/stream/cancel transitions and commits turns to storage

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/store"
)

// State is the session lifecycle state.
type State string

const (
	// StateIdle means no exchange is in flight; Submit is accepted.
	StateIdle State = "idle"
	// StateSending means the user turn is recorded and the stream is opening.
	StateSending State = "sending"
	// StateStreaming means assistant fragments are arriving.
	StateStreaming State = "streaming"
	// StateFailed is the transient state on transport failure before the
	// session resolves back to Idle.
	StateFailed State = "failed"
)

var (
	// ErrEmptySubmit is returned when Submit is called with blank text.
	ErrEmptySubmit = errors.New("session: nothing to submit")
	// ErrBusy is returned when an exchange is already in flight.
	ErrBusy = errors.New("session: exchange in flight")
)

// ErrIdleTimeout marks a stream abandoned because no fragment arrived
// within the configured idle window. Treated as a transport failure.
var ErrIdleTimeout = errors.New("session: stream idle timeout")

// MessageStore defines what a session needs from storage.
type MessageStore interface {
	CreateMessage(ctx context.Context, userID string, msg *store.Message) error
}

// TitleFunc is invoked once per session after the first committed exchange.
type TitleFunc func(chatID, userID string)

// Session holds the in-memory conversation state for one open chat.
// All methods are safe for concurrent use.
type Session struct {
	chatID      string
	userID      string
	agentPrompt string

	store       MessageStore
	transport   Transport
	logger      *slog.Logger
	idleTimeout time.Duration
	titleFn     TitleFunc

	mu           sync.Mutex
	state        State
	messages     []store.Message
	input        string
	generation   uint64
	cancelStream context.CancelFunc
	cancelled    bool
	titleFired   bool
	autoFired    bool
	errs         chan error
}

// Config carries the collaborators and tunables for a session.
type Config struct {
	ChatID      string
	UserID      string
	AgentPrompt string // optional system instructions
	Store       MessageStore
	Transport   Transport
	Logger      *slog.Logger
	IdleTimeout time.Duration
	TitleFn     TitleFunc
	// Seed is the persisted history the session opens with. A non-empty
	// seed latches title synthesis off: the chat already had its chance.
	Seed []*store.Message
}

// New creates a session seeded with existing history.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Session{
		chatID:      cfg.ChatID,
		userID:      cfg.UserID,
		agentPrompt: cfg.AgentPrompt,
		store:       cfg.Store,
		transport:   cfg.Transport,
		logger:      logger.With("component", "session", "chat_id", cfg.ChatID),
		idleTimeout: cfg.IdleTimeout,
		titleFn:     cfg.TitleFn,
		state:       StateIdle,
		titleFired:  len(cfg.Seed) > 0,
		errs:        make(chan error, 8),
	}
	for _, m := range cfg.Seed {
		s.messages = append(s.messages, *m)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a snapshot copy of the in-memory transcript, including
// any partial assistant text from a cancelled or failed exchange.
func (s *Session) Messages() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetInput stores the draft input text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the draft input text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Errors returns the channel carrying non-fatal session errors, such as
// transport failures and persistence problems. The channel is buffered;
// errors are dropped with a log line if nobody drains it.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// Submit records a user turn and starts a streaming exchange. The returned
// channel carries assistant fragments and is closed when the exchange
// completes, fails, or is cancelled. Submit returns ErrBusy while an
// exchange is in flight and ErrEmptySubmit for blank text.
func (s *Session) Submit(ctx context.Context, text string) (<-chan string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySubmit
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	userMsg := store.Message{
		ID:        uuid.New().String(),
		ChatID:    s.chatID,
		Role:      store.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	s.state = StateSending
	s.cancelled = false
	s.generation++
	gen := s.generation
	s.messages = append(s.messages, userMsg)
	s.input = ""
	turns := s.turnsLocked()

	// The stream outlives the submit request; cancellation is explicit.
	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancelStream = cancel
	s.mu.Unlock()

	// Persist the user turn off the critical path. Failure does not roll
	// back the in-memory turn; the exchange proceeds regardless.
	go s.persistMessage(userMsg)

	stream, err := s.transport.StreamChat(streamCtx, turns)
	if err != nil {
		cancel()
		s.mu.Lock()
		cancelled := s.cancelled || errors.Is(err, context.Canceled)
		s.cancelled = false
		if cancelled {
			// Cancel raced the stream open; not a failure.
			s.state = StateIdle
			s.mu.Unlock()
			return nil, err
		}
		s.state = StateFailed
		s.mu.Unlock()
		s.reportError(fmt.Errorf("opening stream: %w", err))

		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Debug("exchange started", "generation", gen)

	out := make(chan string, 16)
	go s.consume(streamCtx, stream, out, gen)
	return out, nil
}

// Cancel aborts the in-flight exchange, if any. The session returns to Idle
// immediately; partial assistant text stays in memory and is never persisted.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSending && s.state != StateStreaming {
		return
	}
	s.cancelled = true
	s.state = StateIdle
	if s.cancelStream != nil {
		s.cancelStream()
	}
	s.logger.Debug("exchange cancelled")
}

// AutoSubmit performs the one automatic submission for a session opened on
// an empty chat with an initial prompt. It is a no-op (nil channel, nil
// error) if the session has history or has already auto-submitted.
func (s *Session) AutoSubmit(ctx context.Context, prompt string) (<-chan string, error) {
	s.mu.Lock()
	if s.autoFired || len(s.messages) > 0 || strings.TrimSpace(prompt) == "" {
		s.mu.Unlock()
		return nil, nil
	}
	s.autoFired = true
	s.mu.Unlock()

	return s.Submit(ctx, prompt)
}

// consume drains the transport stream, updating state and the transcript as
// fragments arrive, and settles the exchange on exhaustion. gen identifies
// the exchange this consumer belongs to; a resubmit after Cancel starts a
// new generation, and anything still arriving from the old one is ignored.
func (s *Session) consume(ctx context.Context, stream Stream, out chan<- string, gen uint64) {
	defer close(out)
	defer stream.Close()

	frags := make(chan string)
	recvErr := make(chan error, 1)
	go func() {
		for {
			frag, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case frags <- frag:
			case <-ctx.Done():
				recvErr <- ctx.Err()
				return
			}
		}
	}()

	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case frag := <-frags:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.idleTimeout)

			if !s.appendFragment(gen, frag) {
				continue
			}
			select {
			case out <- frag:
			case <-ctx.Done():
				s.finish(gen, ctx.Err())
				return
			}

		case err := <-recvErr:
			s.finish(gen, err)
			return

		case <-ctx.Done():
			s.finish(gen, ctx.Err())
			return

		case <-timer.C:
			s.mu.Lock()
			if s.cancelStream != nil {
				s.cancelStream()
			}
			s.mu.Unlock()
			s.finish(gen, ErrIdleTimeout)
			return
		}
	}
}

// appendFragment applies one fragment to the transcript. The first fragment
// of an exchange promotes Sending to Streaming and creates the assistant
// placeholder. Fragments from a stale generation, or arriving when the last
// message is not an assistant turn, are dropped and counted. Returns false
// if the fragment was dropped.
func (s *Session) appendFragment(gen uint64, frag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}
	if gen != s.generation {
		metrics.FragmentsDropped.Inc()
		s.logger.Warn("dropping fragment from stale exchange", "generation", gen)
		return false
	}

	if s.state == StateSending {
		s.state = StateStreaming
		s.messages = append(s.messages, store.Message{
			ID:        uuid.New().String(),
			ChatID:    s.chatID,
			Role:      store.RoleAssistant,
			CreatedAt: time.Now(),
		})
	}

	if len(s.messages) == 0 || s.messages[len(s.messages)-1].Role != store.RoleAssistant {
		metrics.FragmentsDropped.Inc()
		s.logger.Warn("dropping fragment, last message is not assistant")
		return false
	}

	s.messages[len(s.messages)-1].Content += frag
	return true
}

// finish settles the exchange after the stream ends for any reason. A settle
// from a stale generation must not touch state owned by the current exchange.
func (s *Session) finish(gen uint64, err error) {
	s.mu.Lock()

	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("ignoring settle from stale exchange", "generation", gen)
		return
	}

	if s.cancelled || errors.Is(err, context.Canceled) {
		// Cancel already moved the session to Idle; the partial assistant
		// text stays in memory and is never committed.
		s.cancelled = false
		s.mu.Unlock()
		s.logger.Debug("stream closed after cancel")
		return
	}

	if err != nil && err != io.EOF {
		s.state = StateFailed
		s.mu.Unlock()
		s.reportError(err)

		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.logger.Warn("exchange failed", "error", err)
		return
	}

	// Stream exhausted cleanly. Commit the assistant turn exactly once.
	var committed *store.Message
	if s.state == StateStreaming && len(s.messages) > 0 {
		last := &s.messages[len(s.messages)-1]
		if last.Role == store.RoleAssistant {
			msg := *last
			committed = &msg
		}
	}
	fireTitle := committed != nil && !s.titleFired && s.titleFn != nil
	if fireTitle {
		s.titleFired = true
	}
	s.state = StateIdle
	s.mu.Unlock()

	if committed != nil {
		s.persistMessage(*committed)
	}
	if fireTitle {
		go s.titleFn(s.chatID, s.userID)
	}
	s.logger.Debug("exchange committed", "fired_title", fireTitle)
}

// persistMessage writes a message with a detached timeout context so
// persistence survives request cancellation.
func (s *Session) persistMessage(msg store.Message) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.CreateMessage(saveCtx, s.userID, &msg); err != nil {
		s.logger.Error("failed to persist message",
			"error", err,
			"message_id", msg.ID,
			"role", msg.Role)
		s.reportError(fmt.Errorf("persisting %s message: %w", msg.Role, err))
	}
}

func (s *Session) reportError(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Warn("error channel full, dropping", "error", err)
	}
}

// turnsLocked builds the transport turn list from the agent prompt and the
// transcript. Caller holds s.mu.
func (s *Session) turnsLocked() []completion.Turn {
	turns := make([]completion.Turn, 0, len(s.messages)+1)
	if s.agentPrompt != "" {
		turns = append(turns, completion.Turn{Role: completion.RoleSystem, Content: s.agentPrompt})
	}
	for _, m := range s.messages {
		if m.Content == "" {
			continue
		}
		turns = append(turns, completion.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
