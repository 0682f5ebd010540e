// ABOUTME: Agent endpoints for reusable system prompts, plus prompt pack listing
// ABOUTME: Owner-scoped CRUD; packs are read-only suggestions

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

type agentResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAgentResponse(a *store.Agent) agentResponse {
	return agentResponse{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Instructions: a.Instructions,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type agentRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Instructions *string `json:"instructions"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	agents, err := s.store.ListAgents(r.Context(), authCtx.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil || *req.Name == "" || req.Instructions == nil || *req.Instructions == "" {
		writeError(w, http.StatusBadRequest, "name and instructions are required")
		return
	}

	agent := &store.Agent{
		UserID:       authCtx.UserID,
		Name:         *req.Name,
		Instructions: *req.Instructions,
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if err := s.store.CreateAgent(r.Context(), agent); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgentResponse(agent))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	agent, err := s.store.GetAgent(r.Context(), authCtx.UserID, chi.URLParam(r, "agentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent, err := s.store.GetAgent(r.Context(), authCtx.UserID, chi.URLParam(r, "agentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.Instructions != nil {
		if *req.Instructions == "" {
			writeError(w, http.StatusBadRequest, "instructions cannot be empty")
			return
		}
		agent.Instructions = *req.Instructions
	}

	if err := s.store.UpdateAgent(r.Context(), authCtx.UserID, agent); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	if err := s.store.DeleteAgent(r.Context(), authCtx.UserID, chi.URLParam(r, "agentID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type packResponse struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	out := []packResponse{}
	if s.packs != nil {
		for _, p := range s.packs.Packs {
			out = append(out, packResponse{
				Name:         p.Name,
				Description:  p.Description,
				Instructions: p.Instructions,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
