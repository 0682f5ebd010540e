// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides chat/message/folder/agent persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.seedRoles(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding roles: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS roles (
			id   TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS permissions (
			id   TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS role_permissions (
			role_id       TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, permission_id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL,
			name          TEXT NOT NULL,
			password_hash TEXT,
			role_id       TEXT REFERENCES roles(id),
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS folders (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id);

		CREATE TABLE IF NOT EXISTS agents (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

		CREATE TABLE IF NOT EXISTS chats (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			folder_id   TEXT REFERENCES folders(id) ON DELETE SET NULL,
			agent_id    TEXT REFERENCES agents(id) ON DELETE SET NULL,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, updated_at);
		CREATE INDEX IF NOT EXISTS idx_chats_folder ON chats(folder_id);

		CREATE TABLE IF NOT EXISTS messages (
			id             TEXT PRIMARY KEY,
			chat_id        TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			role           TEXT NOT NULL,
			content        TEXT NOT NULL,
			web_search     INTEGER NOT NULL DEFAULT 0,
			deep_reasoning INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at);

		CREATE TABLE IF NOT EXISTS audit_log (
			id            TEXT PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			action        TEXT NOT NULL,
			target_type   TEXT NOT NULL,
			target_id     TEXT NOT NULL,
			ts            TEXT NOT NULL,
			detail_json   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_user_id);

		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// seedRoles inserts the default roles and permissions if they are missing.
// Idempotent across restarts.
func (s *SQLiteStore) seedRoles() error {
	adminPerms := []string{
		PermUsersRead,
		PermUsersWrite,
		PermAuditRead,
		PermSettingsRead,
		PermSettingsWrite,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range []string{RoleNameAdmin, RoleNameUser} {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO roles (id, name) VALUES (?, ?)`,
			uuid.New().String(), name,
		); err != nil {
			return fmt.Errorf("inserting role %s: %w", name, err)
		}
	}

	for _, name := range adminPerms {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO permissions (id, name) VALUES (?, ?)`,
			uuid.New().String(), name,
		); err != nil {
			return fmt.Errorf("inserting permission %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO role_permissions (role_id, permission_id)
		SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = ?
	`, RoleNameAdmin); err != nil {
		return fmt.Errorf("granting admin permissions: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Chats ---

// CreateChat inserts a new chat. ID and timestamps are generated if unset.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, folder_id, agent_id, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		chat.ID, chat.UserID, chat.Title, chat.FolderID, chat.AgentID,
		boolToInt(chat.IsArchived), formatTime(chat.CreatedAt), formatTime(chat.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting chat: %w", err)
	}

	s.logger.Debug("chat created", "chat_id", chat.ID, "user_id", chat.UserID)
	return nil
}

// GetChat retrieves a chat by ID, scoped to its owner.
func (s *SQLiteStore) GetChat(ctx context.Context, userID, chatID string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, folder_id, agent_id, is_archived, created_at, updated_at
		FROM chats WHERE id = ? AND user_id = ?
	`, chatID, userID)
	return scanChat(row)
}

// ListChats returns the user's non-archived chats ordered by most recent activity.
func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]*Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, folder_id, agent_id, is_archived, created_at, updated_at
		FROM chats WHERE user_id = ? AND is_archived = 0
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// UpdateChat updates a chat's mutable fields, scoped to its owner.
func (s *SQLiteStore) UpdateChat(ctx context.Context, userID string, chat *Chat) error {
	chat.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE chats SET title = ?, folder_id = ?, agent_id = ?, is_archived = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		chat.Title, chat.FolderID, chat.AgentID, boolToInt(chat.IsArchived),
		formatTime(chat.UpdatedAt), chat.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating chat: %w", err)
	}
	return requireRow(res)
}

// UpdateChatTitle sets a chat's title and returns the updated chat.
func (s *SQLiteStore) UpdateChatTitle(ctx context.Context, userID, chatID, title string) (*Chat, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, title, formatTime(time.Now().UTC()), chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("updating chat title: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetChat(ctx, userID, chatID)
}

// DeleteChat removes a chat and its messages (cascade), scoped to its owner.
func (s *SQLiteStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	return requireRow(res)
}

// --- Messages ---

// CreateMessage inserts a new message after verifying chat ownership.
// The owning chat's updated_at is bumped so it sorts to the top of the sidebar.
func (s *SQLiteStore) CreateMessage(ctx context.Context, userID string, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM chats WHERE id = ?`, msg.ChatID).Scan(&owner)
	if err == sql.ErrNoRows || (err == nil && owner != userID) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking chat ownership: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, web_search, deep_reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID, msg.ChatID, msg.Role, msg.Content,
		boolToInt(msg.WebSearch), boolToInt(msg.DeepReasoning), formatTime(msg.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), msg.ChatID,
	); err != nil {
		return fmt.Errorf("touching chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("message created", "message_id", msg.ID, "chat_id", msg.ChatID, "role", msg.Role)
	return nil
}

// ListMessages returns a chat's messages ordered by creation time ascending.
// A limit <= 0 returns all messages.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID, chatID string, limit int) ([]*Message, error) {
	// Ownership check behaves like not-found for foreign chats
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, chat_id, role, content, web_search, deep_reasoning, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC
	`
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var webSearch, deepReasoning int
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &webSearch, &deepReasoning, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.WebSearch = webSearch != 0
		m.DeepReasoning = deepReasoning != 0
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// --- Folders ---

// CreateFolder inserts a new folder. ID and timestamp are generated if unset.
func (s *SQLiteStore) CreateFolder(ctx context.Context, folder *Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`, folder.ID, folder.UserID, folder.Name, formatTime(folder.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting folder: %w", err)
	}
	return nil
}

// ListFolders returns the user's folders ordered by creation time.
func (s *SQLiteStore) ListFolders(ctx context.Context, userID string) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at FROM folders
		WHERE user_id = ? ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var f Folder
		var createdAt string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		f.CreatedAt = parseTime(createdAt)
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

// UpdateFolder renames a folder, scoped to its owner.
func (s *SQLiteStore) UpdateFolder(ctx context.Context, userID string, folder *Folder) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE folders SET name = ? WHERE id = ? AND user_id = ?`,
		folder.Name, folder.ID, userID)
	if err != nil {
		return fmt.Errorf("updating folder: %w", err)
	}
	return requireRow(res)
}

// DeleteFolder removes a folder. Chats in the folder are kept and unfiled
// via the ON DELETE SET NULL constraint.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, userID, folderID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM folders WHERE id = ? AND user_id = ?`, folderID, userID)
	if err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	return requireRow(res)
}

// --- Agents ---

// CreateAgent inserts a new agent. ID and timestamps are generated if unset.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	if agent.UpdatedAt.IsZero() {
		agent.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, user_id, name, description, instructions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		agent.ID, agent.UserID, agent.Name, agent.Description, agent.Instructions,
		formatTime(agent.CreatedAt), formatTime(agent.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID, scoped to its owner.
func (s *SQLiteStore) GetAgent(ctx context.Context, userID, agentID string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, instructions, created_at, updated_at
		FROM agents WHERE id = ? AND user_id = ?
	`, agentID, userID)

	var a Agent
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Instructions, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// ListAgents returns the user's agents ordered by most recently updated.
func (s *SQLiteStore) ListAgents(ctx context.Context, userID string) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, instructions, created_at, updated_at
		FROM agents WHERE user_id = ? ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Instructions, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// UpdateAgent updates an agent's mutable fields, scoped to its owner.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, userID string, agent *Agent) error {
	agent.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET name = ?, description = ?, instructions = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		agent.Name, agent.Description, agent.Instructions,
		formatTime(agent.UpdatedAt), agent.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}
	return requireRow(res)
}

// DeleteAgent removes an agent. Chats referencing it are detached via
// ON DELETE SET NULL.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, userID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agents WHERE id = ? AND user_id = ?`, agentID, userID)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	return requireRow(res)
}

// --- helpers ---

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*Chat, error) {
	var c Chat
	var isArchived int
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.FolderID, &c.AgentID, &isArchived, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chat: %w", err)
	}
	c.IsArchived = isArchived != 0
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// requireRow converts a zero-row update/delete into ErrNotFound
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fall back for rows written without sub-second precision
		t, _ = time.Parse(time.RFC3339, strings.TrimSpace(s))
	}
	return t
}
