// ABOUTME: The init and bootstrap subcommands
// ABOUTME: Generates config files and creates the initial admin account

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/packs"
	"github.com/parleyhq/parley/internal/store"
)

// runBootstrap creates the config file (if absent) and the first admin user,
// then seeds the default prompt packs for that user. It refuses to run
// against a database that already has users.
func runBootstrap(ctx context.Context, args []string) error {
	var name, email, password string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var key, value string
		if eq := strings.Index(arg, "="); eq >= 0 {
			key, value = arg[:eq], arg[eq+1:]
		} else {
			key = arg
			if i+1 < len(args) {
				value = args[i+1]
				i++
			}
		}
		switch key {
		case "--name":
			name = value
		case "--email":
			email = value
		case "--password":
			password = value
		default:
			return fmt.Errorf("unknown flag: %s", key)
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if name == "" {
		name = prompt(reader, "Admin name", "Admin")
	}
	if email == "" {
		email = prompt(reader, "Admin email", "")
		if email == "" {
			return fmt.Errorf("email is required")
		}
	}
	if password == "" {
		password = prompt(reader, "Admin password", "")
		if password == "" {
			return fmt.Errorf("password is required")
		}
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}
		color.Green("✓ wrote config to %s", configPath)
	} else {
		fmt.Printf("  using existing config at %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	_, total, err := st.ListUsers(ctx, store.UserFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("checking for existing users: %w", err)
	}
	if total > 0 {
		return fmt.Errorf("database already has %d user(s); bootstrap only runs on a fresh install", total)
	}

	role, err := st.GetRoleByName(ctx, store.RoleNameAdmin)
	if err != nil {
		return fmt.Errorf("looking up admin role: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	admin := &store.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		RoleID:       role.ID,
		IsActive:     true,
	}
	if err := st.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	color.Green("✓ created admin user %s", email)

	manifest, err := packs.Load(cfg.Packs.ManifestPath)
	if err != nil {
		return fmt.Errorf("loading prompt packs: %w", err)
	}
	if err := manifest.Seed(ctx, st, admin.ID, nil); err != nil {
		return fmt.Errorf("seeding prompt packs: %w", err)
	}
	color.Green("✓ seeded %d prompt pack(s)", len(manifest.Packs))

	fmt.Println()
	fmt.Printf("  run %s to start the server\n", color.HiWhiteString("parley-server serve"))
	return nil
}

// runInit interactively writes a config file without touching the database.
func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Creating a new parley config. Press enter to accept defaults.")
	fmt.Println()

	addr := prompt(reader, "HTTP listen address", config.DefaultHTTPAddr)
	dbPath := prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "parley.db"))
	baseURL := prompt(reader, "Completion API base URL", "https://api.openai.com/v1")
	apiKey := prompt(reader, "Completion API key (or ${ENV_VAR} reference)", "${OPENAI_API_KEY}")
	model := prompt(reader, "Chat model", config.DefaultModel)

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	data := renderConfig(addr, dbPath, secret, baseURL, apiKey, model)
	if err := writeConfigFile(configPath, data); err != nil {
		return err
	}
	color.Green("✓ wrote config to %s", configPath)
	fmt.Printf("  run %s to create the admin user\n", color.HiWhiteString("parley-server bootstrap"))
	return nil
}

// prompt reads one line, returning the default when the answer is blank.
func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal
	}
	return line
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func writeDefaultConfig(path string) error {
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	data := renderConfig(config.DefaultHTTPAddr, filepath.Join(getDataPath(), "parley.db"),
		secret, "https://api.openai.com/v1", "${OPENAI_API_KEY}", config.DefaultModel)
	return writeConfigFile(path, data)
}

// writeConfigFile writes with 0600 since the config holds the jwt secret.
func writeConfigFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func renderConfig(addr, dbPath, secret, baseURL, apiKey, model string) string {
	return fmt.Sprintf(`server:
  http_addr: %q

database:
  path: %q

auth:
  jwt_secret: %q
  session_ttl: 168h

completion:
  base_url: %q
  api_key: %q
  model: %q
  title_model: %q
  idle_timeout: 60s

logging:
  level: info
  format: console

metrics:
  enabled: true
`, addr, dbPath, secret, baseURL, apiKey, model, config.DefaultTitleModel)
}
