// ABOUTME: Prompt packs are named agent templates loaded from a TOML manifest
// ABOUTME: Ships embedded defaults and seeds them into a user's agents on startup

package packs

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/parleyhq/parley/internal/store"
)

//go:embed defaults.toml
var defaultManifest []byte

// Pack is one reusable agent template.
type Pack struct {
	Name         string `toml:"name"`
	Description  string `toml:"description"`
	Instructions string `toml:"instructions"`
}

// Manifest is the parsed prompt-pack file.
type Manifest struct {
	Packs []Pack `toml:"pack"`
}

// Load reads a manifest from disk, or the embedded defaults when path is
// empty.
func Load(path string) (*Manifest, error) {
	data := defaultManifest
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		data = fileData
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	for i, p := range m.Packs {
		if p.Name == "" {
			return nil, fmt.Errorf("pack %d: name is required", i)
		}
		if p.Instructions == "" {
			return nil, fmt.Errorf("pack %q: instructions are required", p.Name)
		}
	}
	return &m, nil
}

// AgentSeeder defines what seeding needs from storage.
type AgentSeeder interface {
	ListAgents(ctx context.Context, userID string) ([]*store.Agent, error)
	CreateAgent(ctx context.Context, agent *store.Agent) error
}

// Seed creates an agent for each pack the user does not already have, keyed
// by agent name. Existing agents are never modified.
func (m *Manifest) Seed(ctx context.Context, st AgentSeeder, userID string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := st.ListAgents(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing agents: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.Name] = true
	}

	seeded := 0
	for _, p := range m.Packs {
		if have[p.Name] {
			continue
		}
		agent := &store.Agent{
			UserID:       userID,
			Name:         p.Name,
			Description:  p.Description,
			Instructions: p.Instructions,
		}
		if err := st.CreateAgent(ctx, agent); err != nil {
			return fmt.Errorf("seeding agent %q: %w", p.Name, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("prompt packs seeded", "user_id", userID, "count", seeded)
	}
	return nil
}
