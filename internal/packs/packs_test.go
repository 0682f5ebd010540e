// ABOUTME: Tests for prompt pack loading and agent seeding
// ABOUTME: Covers embedded defaults, manifest validation, and seed idempotence

package packs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, m.Packs)

	names := make(map[string]bool)
	for _, p := range m.Packs {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Instructions)
		assert.False(t, names[p.Name], "duplicate pack name %q", p.Name)
		names[p.Name] = true
	}
	assert.True(t, names["General Assistant"])
}

func TestLoad_ManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[pack]]
name = "Pirate"
description = "Talks like a pirate"
instructions = "Answer every question in pirate speak."
`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Packs, 1)
	assert.Equal(t, "Pirate", m.Packs[0].Name)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing-name.toml")
	require.NoError(t, os.WriteFile(missing, []byte(`
[[pack]]
description = "no name"
instructions = "x"
`), 0o600))
	_, err := Load(missing)
	assert.Error(t, err)

	noInstr := filepath.Join(dir, "missing-instructions.toml")
	require.NoError(t, os.WriteFile(noInstr, []byte(`
[[pack]]
name = "Empty"
`), 0o600))
	_, err = Load(noInstr)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	mock := store.NewMockStore()
	user := &store.User{Email: "u@example.com", Name: "U", IsActive: true}
	require.NoError(t, mock.CreateUser(context.Background(), user))

	m := &Manifest{Packs: []Pack{
		{Name: "One", Instructions: "first"},
		{Name: "Two", Instructions: "second"},
	}}

	require.NoError(t, m.Seed(context.Background(), mock, user.ID, nil))
	agents, err := mock.ListAgents(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	// Second seed creates nothing new
	require.NoError(t, m.Seed(context.Background(), mock, user.ID, nil))
	agents, err = mock.ListAgents(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}

func TestSeed_SkipsExistingNames(t *testing.T) {
	mock := store.NewMockStore()
	user := &store.User{Email: "u@example.com", Name: "U", IsActive: true}
	require.NoError(t, mock.CreateUser(context.Background(), user))

	custom := &store.Agent{UserID: user.ID, Name: "One", Instructions: "customized"}
	require.NoError(t, mock.CreateAgent(context.Background(), custom))

	m := &Manifest{Packs: []Pack{{Name: "One", Instructions: "default"}}}
	require.NoError(t, m.Seed(context.Background(), mock, user.ID, nil))

	agents, err := mock.ListAgents(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "customized", agents[0].Instructions)
}
