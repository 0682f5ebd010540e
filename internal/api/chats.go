// ABOUTME: Chat CRUD, message listing, and the streaming exchange endpoints
// ABOUTME: Bridges HTTP requests onto the per-chat session state machine

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/store"
)

type chatResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	FolderID   *string   `json:"folder_id"`
	AgentID    *string   `json:"agent_id"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toChatResponse(c *store.Chat) chatResponse {
	return chatResponse{
		ID:         c.ID,
		Title:      c.Title,
		FolderID:   c.FolderID,
		AgentID:    c.AgentID,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	chats, err := s.store.ListChats(r.Context(), authCtx.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type createChatRequest struct {
	Title    string  `json:"title"`
	FolderID *string `json:"folder_id"`
	AgentID  *string `json:"agent_id"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "New Chat"
	}

	chat := &store.Chat{
		UserID:   authCtx.UserID,
		Title:    req.Title,
		FolderID: req.FolderID,
		AgentID:  req.AgentID,
	}
	if err := s.store.CreateChat(r.Context(), chat); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	chat, err := s.store.GetChat(r.Context(), authCtx.UserID, chi.URLParam(r, "chatID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

// updateChatRequest uses empty string to clear folder_id/agent_id; absent
// fields are left unchanged.
type updateChatRequest struct {
	Title      *string `json:"title"`
	FolderID   *string `json:"folder_id"`
	AgentID    *string `json:"agent_id"`
	IsArchived *bool   `json:"is_archived"`
}

func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	var req updateChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chat, err := s.store.GetChat(r.Context(), authCtx.UserID, chatID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			writeError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		chat.Title = *req.Title
	}
	if req.FolderID != nil {
		if *req.FolderID == "" {
			chat.FolderID = nil
		} else {
			chat.FolderID = req.FolderID
		}
	}
	if req.AgentID != nil {
		if *req.AgentID == "" {
			chat.AgentID = nil
		} else {
			chat.AgentID = req.AgentID
		}
	}
	if req.IsArchived != nil {
		chat.IsArchived = *req.IsArchived
	}

	if err := s.store.UpdateChat(r.Context(), authCtx.UserID, chat); err != nil {
		writeStoreError(w, err)
		return
	}

	// Changing the agent invalidates any live session's system prompt
	if req.AgentID != nil {
		s.sessions.Close(chatID)
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	if err := s.store.DeleteChat(r.Context(), authCtx.UserID, chatID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.sessions.Close(chatID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	msgs, err := s.store.ListMessages(r.Context(), authCtx.UserID, chi.URLParam(r, "chatID"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type streamRequest struct {
	Text string `json:"text"`
	// Auto marks the one automatic submission for a freshly created chat.
	Auto bool `json:"auto,omitempty"`
}

// handleStream submits text to the chat's session and streams assistant
// fragments back as chunked text/plain. Client disconnect cancels the
// exchange.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	var req streamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.sessions.Open(r.Context(), authCtx.UserID, chatID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var ch <-chan string
	if req.Auto {
		ch, err = sess.AutoSubmit(r.Context(), req.Text)
		if err == nil && ch == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	} else {
		ch, err = sess.Submit(r.Context(), req.Text)
	}
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptySubmit):
			writeError(w, http.StatusBadRequest, "nothing to submit")
		case errors.Is(err, session.ErrBusy):
			writeError(w, http.StatusConflict, "a response is already in progress")
		default:
			s.logger.Error("failed to open exchange", "error", err, "chat_id", chatID)
			metrics.ExchangeFailures.Inc()
			writeError(w, http.StatusBadGateway, "completion service unavailable")
		}
		return
	}

	metrics.ExchangesStarted.Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	for {
		select {
		case frag, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write([]byte(frag)); err != nil {
				sess.Cancel()
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			sess.Cancel()
			metrics.ExchangesCancelled.Inc()
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	if _, err := s.store.GetChat(r.Context(), authCtx.UserID, chatID); err != nil {
		writeStoreError(w, err)
		return
	}

	if sess, ok := s.sessions.Get(authCtx.UserID, chatID); ok {
		sess.Cancel()
		metrics.ExchangesCancelled.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	generated, err := s.titles.Synthesize(r.Context(), authCtx.UserID, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Warn("title generation failed", "error", err, "chat_id", chatID)
		writeError(w, http.StatusBadGateway, "title generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"title": generated})
}
