// ABOUTME: Title synthesis for chats, triggered after the first exchange
// ABOUTME: Summarizes early messages into a short title via the completion boundary

package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/store"
)

const (
	// contextMessages bounds how much history feeds the title prompt.
	contextMessages = 5
	// contextCharsPerMessage truncates each message before prompting.
	contextCharsPerMessage = 200
	// maxTitleLength caps the stored title.
	maxTitleLength = 100

	triggerTimeout = 30 * time.Second
)

const promptTemplate = `Generate a short, descriptive title (max 6 words) for a conversation that starts with these messages:

%s

Return ONLY the title, no quotes or extra text.`

// TitleStore defines what synthesis needs from storage.
type TitleStore interface {
	ListMessages(ctx context.Context, userID, chatID string, limit int) ([]*store.Message, error)
	UpdateChatTitle(ctx context.Context, userID, chatID, title string) (*store.Chat, error)
}

// Completer is the non-streaming completion call used for titles.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Synthesizer generates and stores chat titles.
type Synthesizer struct {
	store     TitleStore
	completer Completer
	model     string
	enabled   bool
	logger    *slog.Logger
}

// New creates a title synthesizer. When disabled, Synthesize and Trigger
// are no-ops.
func New(st TitleStore, completer Completer, model string, enabled bool, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		store:     st,
		completer: completer,
		model:     model,
		enabled:   enabled,
		logger:    logger.With("component", "title"),
	}
}

// Synthesize generates a title from the chat's earliest messages, stores it,
// and returns it.
func (s *Synthesizer) Synthesize(ctx context.Context, userID, chatID string) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("title synthesis disabled")
	}

	msgs, err := s.store.ListMessages(ctx, userID, chatID, contextMessages)
	if err != nil {
		return "", fmt.Errorf("loading messages: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("chat has no messages")
	}

	raw, err := s.completer.Complete(ctx, s.model, fmt.Sprintf(promptTemplate, buildContext(msgs)))
	if err != nil {
		return "", fmt.Errorf("completing title prompt: %w", err)
	}

	title := CleanTitle(raw)
	if title == "" {
		return "", fmt.Errorf("model returned an empty title")
	}

	if _, err := s.store.UpdateChatTitle(ctx, userID, chatID, title); err != nil {
		return "", fmt.Errorf("storing title: %w", err)
	}

	metrics.TitlesGenerated.Inc()
	s.logger.Debug("title synthesized", "chat_id", chatID, "title", title)
	return title, nil
}

// Trigger runs synthesis with a detached timeout context, logging and
// swallowing any failure. Suitable as a session TitleFunc.
func (s *Synthesizer) Trigger(chatID, userID string) {
	if !s.enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()

	if _, err := s.Synthesize(ctx, userID, chatID); err != nil {
		s.logger.Warn("title synthesis failed", "chat_id", chatID, "error", err)
	}
}

// buildContext renders messages as compact "role: text" lines.
func buildContext(msgs []*store.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		text := m.Content
		if len(text) > contextCharsPerMessage {
			text = text[:contextCharsPerMessage]
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, text)
	}
	return b.String()
}

// CleanTitle normalizes model output: trims whitespace, strips one layer of
// surrounding quotes, and caps the length.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)

	if len(title) >= 2 {
		first, last := title[0], title[len(title)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			title = strings.TrimSpace(title[1 : len(title)-1])
		}
	}

	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}
