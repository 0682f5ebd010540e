// ABOUTME: Entry point for the parley chat server
// ABOUTME: Handles serve, init, bootstrap, and health subcommands

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/packs"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/title"
)

var version = "dev"

const banner = `
                  _
 _ __   __ _ _ __| | ___ _   _
| '_ \ / _` + "`" + ` | '__| |/ _ \ | | |
| |_) | (_| | |  | |  __/ |_| |
| .__/ \__,_|_|  |_|\___|\__, |
|_|                      |___/
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Printf("parley-server %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`parley-server - multi-user AI chat server

Usage:
  parley-server [command]

Commands:
  serve      Start the HTTP server (default)
  init       Interactively create a config file
  bootstrap  Create the config and the initial admin user
  health     Check a running server's health endpoint
  version    Print the version

Environment:
  PARLEY_CONFIG  Path to the config file
`)
}

// getConfigPath resolves the config file location: explicit env var first,
// then XDG config dir, then ~/.config.
func getConfigPath() string {
	if path := os.Getenv("PARLEY_CONFIG"); path != "" {
		return path
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley", "server.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "parley.yaml"
	}
	return filepath.Join(home, ".config", "parley", "server.yaml")
}

func getDataPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "parley")
}

func runServe(ctx context.Context) error {
	fmt.Print(color.CyanString(banner))
	fmt.Printf("  %s %s\n\n", color.HiWhiteString("parley-server"), color.HiBlackString(version))

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting server", "version", version, "config", configPath)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	client := completion.NewClient(cfg.Completion.BaseURL, cfg.Completion.APIKey,
		cfg.Completion.Model, cfg.Completion.RequestTimeout)
	transport := session.NewTransport(client)

	titles := title.New(st, client, cfg.Completion.TitleModel,
		cfg.Titles.AutoTitleEnabled(), logger)
	sessions := session.NewManager(st, transport, logger,
		cfg.Completion.IdleTimeout, titles.Trigger)

	manifest, err := packs.Load(cfg.Packs.ManifestPath)
	if err != nil {
		return fmt.Errorf("loading prompt packs: %w", err)
	}

	srv := api.NewServer(api.Options{
		Store:          st,
		Verifier:       auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		Sessions:       sessions,
		Titles:         titles,
		Packs:          manifest,
		Logger:         logger,
		SessionTTL:     cfg.Auth.SessionTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	fmt.Printf("  %s http://localhost%s\n", color.GreenString("▸ listening"), displayAddr(cfg.Server.HTTPAddr))
	if cfg.Metrics.Enabled {
		fmt.Printf("  %s /metrics\n", color.GreenString("▸ metrics"))
	}
	fmt.Println()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("goodbye")
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://localhost%s/healthz", displayAddr(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		color.Red("✗ server unreachable: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		color.Red("✗ unhealthy: %s", resp.Status)
		os.Exit(1)
	}
	color.Green("✓ healthy")
	return nil
}
