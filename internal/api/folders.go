// ABOUTME: Folder endpoints for organizing chats in the sidebar
// ABOUTME: Owner-scoped CRUD; deleting a folder unfiles its chats

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

type folderResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type folderRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	folders, err := s.store.ListFolders(r.Context(), authCtx.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]folderResponse, 0, len(folders))
	for _, f := range folders {
		out = append(out, folderResponse{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	folder := &store.Folder{UserID: authCtx.UserID, Name: req.Name}
	if err := s.store.CreateFolder(r.Context(), folder); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folderResponse{ID: folder.ID, Name: folder.Name, CreatedAt: folder.CreatedAt})
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	folder := &store.Folder{ID: chi.URLParam(r, "folderID"), UserID: authCtx.UserID, Name: req.Name}
	if err := s.store.UpdateFolder(r.Context(), authCtx.UserID, folder); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folderResponse{ID: folder.ID, Name: folder.Name, CreatedAt: folder.CreatedAt})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	if err := s.store.DeleteFolder(r.Context(), authCtx.UserID, chi.URLParam(r, "folderID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
