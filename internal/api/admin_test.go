// ABOUTME: Tests for the admin surface
// ABOUTME: Covers permission gates, user management, audit trail, settings, and stats

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

func TestAdmin_PermissionGates(t *testing.T) {
	env := newTestEnv(t)
	_, plainToken := env.createUser(t, "plain@example.com", store.RoleNameUser)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/audit"},
		{http.MethodGet, "/api/admin/settings"},
		{http.MethodGet, "/api/admin/stats"},
	}
	for _, p := range paths {
		rec := env.request(t, p.method, p.path, plainToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestAdmin_UserLifecycleWithAudit(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.createUser(t, "admin@example.com", store.RoleNameAdmin)

	// Create
	rec := env.request(t, http.MethodPost, "/api/admin/users", adminToken, map[string]string{
		"email": "new@example.com", "name": "New User", "password": "pw12345", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[userResponse](t, rec)
	assert.Equal(t, "user", created.Role)
	assert.True(t, created.IsActive)

	// Duplicate email conflicts
	rec = env.request(t, http.MethodPost, "/api/admin/users", adminToken, map[string]string{
		"email": "new@example.com", "name": "Dup", "password": "pw12345",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Promote to admin
	rec = env.request(t, http.MethodPatch, "/api/admin/users/"+created.ID, adminToken, map[string]string{
		"role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody[userResponse](t, rec).Role)

	// Delete
	rec = env.request(t, http.MethodDelete, "/api/admin/users/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Audit trail recorded each step, newest first
	rec = env.request(t, http.MethodGet, "/api/admin/audit", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]auditResponse](t, rec)
	require.GreaterOrEqual(t, len(entries), 4)

	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
		assert.Equal(t, admin.ID, e.ActorUserID)
	}
	assert.Contains(t, actions, store.AuditUserCreated)
	assert.Contains(t, actions, store.AuditUserUpdated)
	assert.Contains(t, actions, store.AuditRoleChanged)
	assert.Contains(t, actions, store.AuditUserDeleted)

	// Filter by action
	rec = env.request(t, http.MethodGet, "/api/admin/audit?action="+store.AuditUserDeleted, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decodeBody[[]auditResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, created.ID, filtered[0].TargetID)
}

func TestAdmin_CannotDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.createUser(t, "admin@example.com", store.RoleNameAdmin)

	rec := env.request(t, http.MethodDelete, "/api/admin/users/"+admin.ID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_ListUsersSearch(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin@example.com", store.RoleNameAdmin)
	env.createUser(t, "alice@example.com", "")
	env.createUser(t, "bob@example.com", "")

	rec := env.request(t, http.MethodGet, "/api/admin/users?search=alice", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Users []userResponse `json:"users"`
		Total int            `json:"total"`
	}](t, rec)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "alice@example.com", resp.Users[0].Email)
	assert.Equal(t, 1, resp.Total)
}

func TestAdmin_Settings(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin@example.com", store.RoleNameAdmin)

	rec := env.request(t, http.MethodPatch, "/api/admin/settings", adminToken, map[string]string{
		"registration": "closed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", decodeBody[map[string]string](t, rec)["registration"])

	// Upsert overwrites
	rec = env.request(t, http.MethodPatch, "/api/admin/settings", adminToken, map[string]string{
		"registration": "open",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/admin/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", decodeBody[map[string]string](t, rec)["registration"])

	// Empty patch rejected
	rec = env.request(t, http.MethodPatch, "/api/admin/settings", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Stats(t *testing.T) {
	env := newTestEnv(t)
	user, adminToken := env.createUser(t, "admin@example.com", store.RoleNameAdmin)
	chat := env.createChat(t, user.ID)
	require.NoError(t, env.store.CreateMessage(context.Background(), user.ID, &store.Message{
		ChatID: chat.ID, Role: store.RoleUser, Content: "hi",
	}))

	rec := env.request(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[map[string]int](t, rec)
	assert.Equal(t, 1, stats["users"])
	assert.Equal(t, 1, stats["chats"])
	assert.Equal(t, 1, stats["messages"])
}
