// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines User, Chat, Message, Folder, Agent structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// owned by the requesting user. Ownership mismatches are indistinguishable
// from missing rows so existence never leaks across users.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email that is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Message role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // bcrypt hash, empty if externally authenticated
	RoleID       string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role groups a named set of permissions.
type Role struct {
	ID   string
	Name string
}

// Default role names seeded at schema creation.
const (
	RoleNameAdmin = "admin"
	RoleNameUser  = "user"
)

// Permission names granted to the admin role.
const (
	PermUsersRead     = "users.read"
	PermUsersWrite    = "users.write"
	PermAuditRead     = "audit.read"
	PermSettingsRead  = "settings.read"
	PermSettingsWrite = "settings.write"
)

// Chat represents a persisted conversation thread owned by one user.
type Chat struct {
	ID         string
	UserID     string
	Title      string
	FolderID   *string
	AgentID    *string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message represents a single role-tagged turn within a chat.
// Messages are immutable once created.
type Message struct {
	ID            string
	ChatID        string
	Role          string // "user", "assistant", "system"
	Content       string
	WebSearch     bool
	DeepReasoning bool
	CreatedAt     time.Time
}

// Folder groups chats in the sidebar.
type Folder struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Agent is a reusable named system prompt a user can attach to chats.
type Agent struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	Instructions string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserFilter specifies options for listing users.
type UserFilter struct {
	Search string // matches email or name, case-insensitive
	Limit  int    // max results (default 50, max 500)
	Offset int
}

// Stats holds dashboard counters.
type Stats struct {
	Users            int
	Chats            int
	Messages         int
	Agents           int
	UsersLast7Days   int
	UsersLast30Days  int
	ChatsLast7Days   int
	ActiveUsers7Days int
}

// Store defines the interface for parley persistence.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*User, int, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error

	// Roles and permissions
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	ListRolePermissions(ctx context.Context, roleID string) ([]string, error)

	// Chats (owner-scoped)
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, userID, chatID string) (*Chat, error)
	ListChats(ctx context.Context, userID string) ([]*Chat, error)
	UpdateChat(ctx context.Context, userID string, chat *Chat) error
	UpdateChatTitle(ctx context.Context, userID, chatID, title string) (*Chat, error)
	DeleteChat(ctx context.Context, userID, chatID string) error

	// Messages (owner-scoped through the chat)
	CreateMessage(ctx context.Context, userID string, msg *Message) error
	ListMessages(ctx context.Context, userID, chatID string, limit int) ([]*Message, error)

	// Folders
	CreateFolder(ctx context.Context, folder *Folder) error
	ListFolders(ctx context.Context, userID string) ([]*Folder, error)
	UpdateFolder(ctx context.Context, userID string, folder *Folder) error
	DeleteFolder(ctx context.Context, userID, folderID string) error

	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, userID, agentID string) (*Agent, error)
	ListAgents(ctx context.Context, userID string) ([]*Agent, error)
	UpdateAgent(ctx context.Context, userID string, agent *Agent) error
	DeleteAgent(ctx context.Context, userID, agentID string) error

	// Audit log
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	// Settings (key-value, upsert semantics)
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Stats for the admin dashboard
	GetStats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the store
	Close() error
}
