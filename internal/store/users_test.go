// ABOUTME: Tests for user and role store methods
// ABOUTME: Verifies unique email enforcement, filtering, and seeded role permissions

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_UserLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user := &User{Email: "alice@example.com", Name: "Alice", PasswordHash: "hash", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, got.IsActive)

	got.Name = "Alice B"
	got.IsActive = false
	require.NoError(t, s.UpdateUser(ctx, got))

	reloaded, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", reloaded.Name)
	assert.False(t, reloaded.IsActive)

	require.NoError(t, s.DeleteUser(ctx, user.ID))
	_, err = s.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateUser_DuplicateEmail(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Email: "dup@example.com", Name: "First", IsActive: true}))
	err := s.CreateUser(ctx, &User{Email: "dup@example.com", Name: "Second", IsActive: true})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSQLiteStore_ListUsers_SearchAndPagination(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"ann@example.com", "bob@example.com", "annette@example.com"} {
		require.NoError(t, s.CreateUser(ctx, &User{Email: email, Name: email, IsActive: true}))
	}

	users, total, err := s.ListUsers(ctx, UserFilter{Search: "ann"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)

	page, total, err := s.ListUsers(ctx, UserFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)
}

func TestSQLiteStore_SeededRoles(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	admin, err := s.GetRoleByName(ctx, RoleNameAdmin)
	require.NoError(t, err)
	perms, err := s.ListRolePermissions(ctx, admin.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		PermUsersRead, PermUsersWrite, PermAuditRead, PermSettingsRead, PermSettingsWrite,
	}, perms)

	user, err := s.GetRoleByName(ctx, RoleNameUser)
	require.NoError(t, err)
	perms, err = s.ListRolePermissions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	// Seeding is idempotent across reopen
	require.NoError(t, s.seedRoles())
	roles, err := s.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}
