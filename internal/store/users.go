// ABOUTME: User and role store methods for account management
// ABOUTME: Users carry a bcrypt hash and a role; roles grant permission sets

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a new user. ID and timestamps are generated if unset.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	var roleID any
	if user.RoleID != "" {
		roleID = user.RoleID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Email, user.Name, user.PasswordHash, roleID,
		boolToInt(user.IsActive), formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("user created", "user_id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role_id, is_active, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role_id, is_active, created_at, updated_at
		FROM users WHERE email = ?
	`, email)
	return scanUser(row)
}

// ListUsers returns users matching the filter plus the total match count.
func (s *SQLiteStore) ListUsers(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := ""
	var args []any
	if filter.Search != "" {
		where = "WHERE email LIKE ? OR name LIKE ?"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, email, name, password_hash, role_id, is_active, created_at, updated_at
		FROM users %s ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, where)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// UpdateUser updates a user's mutable fields.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()

	var roleID any
	if user.RoleID != "" {
		roleID = user.RoleID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, password_hash = ?, role_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		user.Email, user.Name, user.PasswordHash, roleID,
		boolToInt(user.IsActive), formatTime(user.UpdatedAt), user.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return requireRow(res)
}

// DeleteUser removes a user. Their chats, folders and agents cascade.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireRow(res)
}

// GetRole retrieves a role by ID.
func (s *SQLiteStore) GetRole(ctx context.Context, id string) (*Role, error) {
	var r Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE id = ?`, id).Scan(&r.ID, &r.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	return &r, nil
}

// GetRoleByName retrieves a role by its unique name.
func (s *SQLiteStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var r Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE name = ?`, name).Scan(&r.ID, &r.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	return &r, nil
}

// ListRoles returns all roles ordered by name.
func (s *SQLiteStore) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// ListRolePermissions returns the permission names granted to a role.
// Returns an empty slice for roles with no permissions.
func (s *SQLiteStore) ListRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ? ORDER BY p.name
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("listing role permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var passwordHash, roleID sql.NullString
	var isActive int
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &passwordHash, &roleID, &isActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.PasswordHash = passwordHash.String
	u.RoleID = roleID.String
	u.IsActive = isActive != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}
