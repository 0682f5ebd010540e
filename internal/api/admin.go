// ABOUTME: Admin endpoints for user management, audit log, settings, and stats
// ABOUTME: Permission-gated; every mutation appends an audit entry

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

func (s *Server) appendAudit(r *http.Request, action, targetType, targetID string, detail map[string]any) {
	authCtx := auth.MustFromContext(r.Context())
	entry := &store.AuditEntry{
		ActorUserID: authCtx.UserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Detail:      detail,
	}
	if err := s.store.AppendAudit(r.Context(), entry); err != nil {
		s.logger.Error("failed to append audit entry", "error", err, "action", action)
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.UserFilter{Search: q.Get("search")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	users, total, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, s.userResponse(r, u))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": out,
		"total": total,
	})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, name, and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if req.Role != "" {
		role, err := s.store.GetRoleByName(r.Context(), req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		user.RoleID = role.ID
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}

	s.appendAudit(r, store.AuditUserCreated, "user", user.ID, map[string]any{
		"email": user.Email,
		"role":  req.Role,
	})
	writeJSON(w, http.StatusCreated, s.userResponse(r, user))
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	roleChanged := false
	if req.Name != nil && *req.Name != "" {
		user.Name = *req.Name
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		user.PasswordHash = hash
	}
	if req.Role != nil {
		role, err := s.store.GetRoleByName(r.Context(), *req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		roleChanged = user.RoleID != role.ID
		user.RoleID = role.ID
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}

	s.appendAudit(r, store.AuditUserUpdated, "user", user.ID, nil)
	if roleChanged {
		s.appendAudit(r, store.AuditRoleChanged, "user", user.ID, map[string]any{
			"role": *req.Role,
		})
	}
	writeJSON(w, http.StatusOK, s.userResponse(r, user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	userID := chi.URLParam(r, "userID")

	if userID == authCtx.UserID {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := s.store.DeleteUser(r.Context(), userID); err != nil {
		writeStoreError(w, err)
		return
	}

	s.appendAudit(r, store.AuditUserDeleted, "user", userID, nil)
	w.WriteHeader(http.StatusNoContent)
}

type auditResponse struct {
	ID          string         `json:"id"`
	ActorUserID string         `json:"actor_user_id"`
	Action      string         `json:"action"`
	TargetType  string         `json:"target_type"`
	TargetID    string         `json:"target_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Detail      map[string]any `json:"detail,omitempty"`
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.AuditFilter

	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("actor"); v != "" {
		filter.ActorUserID = &v
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		filter.Since = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := s.store.ListAudit(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:          e.ID,
			ActorUserID: e.ActorUserID,
			Action:      e.Action,
			TargetType:  e.TargetType,
			TargetID:    e.TargetID,
			Timestamp:   e.Timestamp,
			Detail:      e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	keys := make([]string, 0, len(req))
	for key, value := range req {
		if err := s.store.SetSetting(r.Context(), key, value); err != nil {
			writeStoreError(w, err)
			return
		}
		keys = append(keys, key)
	}

	s.appendAudit(r, store.AuditSettingsUpdated, "settings", "", map[string]any{
		"keys": keys,
	})

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"users":               stats.Users,
		"chats":               stats.Chats,
		"messages":            stats.Messages,
		"agents":              stats.Agents,
		"users_last_7_days":   stats.UsersLast7Days,
		"users_last_30_days":  stats.UsersLast30Days,
		"chats_last_7_days":   stats.ChatsLast7Days,
		"active_users_7_days": stats.ActiveUsers7Days,
	})
}
