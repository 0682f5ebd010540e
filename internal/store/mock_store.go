// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	roles     map[string]*Role     // keyed by role ID
	rolePerms map[string][]string  // keyed by role ID
	chats     map[string]*Chat     // keyed by chat ID
	messages  map[string][]*Message // keyed by chat ID
	folders   map[string]*Folder
	agents    map[string]*Agent
	audit     []*AuditEntry
	settings  map[string]string
}

// NewMockStore creates a new MockStore with the default roles seeded.
func NewMockStore() *MockStore {
	m := &MockStore{
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		rolePerms: make(map[string][]string),
		chats:     make(map[string]*Chat),
		messages:  make(map[string][]*Message),
		folders:   make(map[string]*Folder),
		agents:    make(map[string]*Agent),
		settings:  make(map[string]string),
	}

	adminRole := &Role{ID: uuid.New().String(), Name: RoleNameAdmin}
	userRole := &Role{ID: uuid.New().String(), Name: RoleNameUser}
	m.roles[adminRole.ID] = adminRole
	m.roles[userRole.ID] = userRole
	m.rolePerms[adminRole.ID] = []string{
		PermAuditRead, PermSettingsRead, PermSettingsWrite, PermUsersRead, PermUsersWrite,
	}
	return m
}

// --- Users ---

func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
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
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListUsers(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, u := range m.users {
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(u.Email), needle) &&
				!strings.Contains(strings.ToLower(u.Name), needle) {
				continue
			}
		}
		result := *u
		users = append(users, &result)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	total := len(users)
	if filter.Offset > 0 {
		if filter.Offset >= len(users) {
			users = nil
		} else {
			users = users[filter.Offset:]
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users, total, nil
}

func (m *MockStore) UpdateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *MockStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for chatID, chat := range m.chats {
		if chat.UserID == id {
			delete(m.chats, chatID)
			delete(m.messages, chatID)
		}
	}
	return nil
}

// --- Roles ---

func (m *MockStore) GetRole(ctx context.Context, id string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *r
	return &result, nil
}

func (m *MockStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.roles {
		if r.Name == name {
			result := *r
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListRoles(ctx context.Context) ([]*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var roles []*Role
	for _, r := range m.roles {
		result := *r
		roles = append(roles, &result)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *MockStore) ListRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perms := m.rolePerms[roleID]
	result := make([]string, len(perms))
	copy(result, perms)
	return result, nil
}

// --- Chats ---

func (m *MockStore) CreateChat(ctx context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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
	c := *chat
	m.chats[c.ID] = &c
	return nil
}

func (m *MockStore) GetChat(ctx context.Context, userID, chatID string) (*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getChatLocked(userID, chatID)
}

func (m *MockStore) getChatLocked(userID, chatID string) (*Chat, error) {
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

func (m *MockStore) ListChats(ctx context.Context, userID string) ([]*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chats []*Chat
	for _, c := range m.chats {
		if c.UserID != userID || c.IsArchived {
			continue
		}
		result := *c
		chats = append(chats, &result)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (m *MockStore) UpdateChat(ctx context.Context, userID string, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.chats[chat.ID]
	if !ok || existing.UserID != userID {
		return ErrNotFound
	}
	chat.UserID = userID
	chat.UpdatedAt = time.Now().UTC()
	c := *chat
	m.chats[c.ID] = &c
	return nil
}

func (m *MockStore) UpdateChatTitle(ctx context.Context, userID, chatID, title string) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	result := *c
	return &result, nil
}

func (m *MockStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.chats, chatID)
	delete(m.messages, chatID)
	return nil
}

// --- Messages ---

func (m *MockStore) CreateMessage(ctx context.Context, userID string, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[msg.ChatID]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	stored := *msg
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], &stored)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) ListMessages(ctx context.Context, userID, chatID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.getChatLocked(userID, chatID); err != nil {
		return nil, err
	}

	msgs := m.messages[chatID]
	result := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		copied := *msg
		result = append(result, &copied)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- Folders ---

func (m *MockStore) CreateFolder(ctx context.Context, folder *Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now().UTC()
	}
	f := *folder
	m.folders[f.ID] = &f
	return nil
}

func (m *MockStore) ListFolders(ctx context.Context, userID string) ([]*Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var folders []*Folder
	for _, f := range m.folders {
		if f.UserID != userID {
			continue
		}
		result := *f
		folders = append(folders, &result)
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].CreatedAt.Before(folders[j].CreatedAt)
	})
	return folders, nil
}

func (m *MockStore) UpdateFolder(ctx context.Context, userID string, folder *Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.folders[folder.ID]
	if !ok || existing.UserID != userID {
		return ErrNotFound
	}
	folder.UserID = userID
	f := *folder
	m.folders[f.ID] = &f
	return nil
}

func (m *MockStore) DeleteFolder(ctx context.Context, userID, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.folders[folderID]
	if !ok || f.UserID != userID {
		return ErrNotFound
	}
	delete(m.folders, folderID)
	for _, c := range m.chats {
		if c.FolderID != nil && *c.FolderID == folderID {
			c.FolderID = nil
		}
	}
	return nil
}

// --- Agents ---

func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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
	a := *agent
	m.agents[a.ID] = &a
	return nil
}

func (m *MockStore) GetAgent(ctx context.Context, userID, agentID string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[agentID]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

func (m *MockStore) ListAgents(ctx context.Context, userID string) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var agents []*Agent
	for _, a := range m.agents {
		if a.UserID != userID {
			continue
		}
		result := *a
		agents = append(agents, &result)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].UpdatedAt.After(agents[j].UpdatedAt)
	})
	return agents, nil
}

func (m *MockStore) UpdateAgent(ctx context.Context, userID string, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.agents[agent.ID]
	if !ok || existing.UserID != userID {
		return ErrNotFound
	}
	agent.UserID = userID
	agent.UpdatedAt = time.Now().UTC()
	a := *agent
	m.agents[a.ID] = &a
	return nil
}

func (m *MockStore) DeleteAgent(ctx context.Context, userID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(m.agents, agentID)
	for _, c := range m.chats {
		if c.AgentID != nil && *c.AgentID == agentID {
			c.AgentID = nil
		}
	}
	return nil
}

// --- Audit ---

func (m *MockStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	e := *entry
	m.audit = append(m.audit, &e)
	return nil
}

func (m *MockStore) ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var entries []*AuditEntry
	for _, e := range m.audit {
		if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && e.Timestamp.After(*filter.Until) {
			continue
		}
		if filter.ActorUserID != nil && e.ActorUserID != *filter.ActorUserID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		result := *e
		entries = append(entries, &result)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// --- Settings ---

func (m *MockStore) GetSettings(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		settings[k] = v
	}
	return settings, nil
}

func (m *MockStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// --- Stats ---

func (m *MockStore) GetStats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		Users:  len(m.users),
		Chats:  len(m.chats),
		Agents: len(m.agents),
	}
	for _, msgs := range m.messages {
		stats.Messages += len(msgs)
	}

	now := time.Now().UTC()
	sevenDaysAgo := now.Add(-7 * 24 * time.Hour)
	thirtyDaysAgo := now.Add(-30 * 24 * time.Hour)
	activeUsers := make(map[string]bool)
	for _, u := range m.users {
		if u.CreatedAt.After(sevenDaysAgo) {
			stats.UsersLast7Days++
		}
		if u.CreatedAt.After(thirtyDaysAgo) {
			stats.UsersLast30Days++
		}
	}
	for _, c := range m.chats {
		if c.CreatedAt.After(sevenDaysAgo) {
			stats.ChatsLast7Days++
		}
		if c.UpdatedAt.After(sevenDaysAgo) {
			activeUsers[c.UserID] = true
		}
	}
	stats.ActiveUsers7Days = len(activeUsers)
	return stats, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
