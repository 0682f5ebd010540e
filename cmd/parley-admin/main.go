// ABOUTME: Operator CLI for the parley admin API
// ABOUTME: Manages users, roles, settings, and the audit trail over HTTP

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const banner = `
                  _                               _           _
 _ __   __ _ _ __| | ___ _   _          __ _  __| |_ __ ___ (_)_ __
| '_ \ / _' | '__| |/ _ \ | | | _____  / _' |/ _' | '_ ' _ \| | '_ \
| |_) | (_| | |  | |  __/ |_| ||_____|| (_| | (_| | | | | | | | | | |
| .__/ \__,_|_|  |_|\___|\__, |        \__,_|\__,_|_| |_| |_|_|_| |_|
|_|                      |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	client := &apiClient{
		baseURL: getBaseURL(),
		token:   getToken(),
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(client, args)
	case "me":
		err = cmdMe(client)
	case "users":
		err = cmdUsers(client, args)
	case "audit":
		err = cmdAudit(client, args)
	case "settings":
		err = cmdSettings(client, args)
	case "stats":
		err = cmdStats(client)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: parley-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login                     Authenticate and save a token")
	fmt.Println("  me                        Show your identity")
	fmt.Println("  users                     List users")
	fmt.Println("  users list [--search q]   List users, optionally filtered")
	fmt.Println("  users create              Create a user (--email, --name, --role)")
	fmt.Println("  users activate <id>       Re-enable a user")
	fmt.Println("  users deactivate <id>     Disable a user without deleting")
	fmt.Println("  users role <id> <role>    Change a user's role")
	fmt.Println("  users delete <id>         Delete a user")
	fmt.Println("  audit [--action a]        Show recent audit entries")
	fmt.Println("  settings                  Show server settings")
	fmt.Println("  settings set <key> <val>  Update a server setting")
	fmt.Println("  stats                     Show usage counters")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PARLEY_URL    Server base URL (default: http://localhost:8080)")
	fmt.Println("  PARLEY_TOKEN  Bearer token (otherwise read from the token file)")
	fmt.Println()
}

func getBaseURL() string {
	if u := os.Getenv("PARLEY_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8080"
}

func tokenPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley", "token")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "parley", "token")
}

// getToken returns the token from PARLEY_TOKEN or the saved token file.
func getToken() string {
	if t := os.Getenv("PARLEY_TOKEN"); t != "" {
		return t
	}
	path := tokenPath()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// apiClient is a thin JSON client for the admin API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type apiError struct {
	Error string `json:"error"`
}

// do issues a request and decodes the JSON response into out (when non-nil).
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type user struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func cmdLogin(c *apiClient, args []string) error {
	var email string
	for i := 0; i < len(args); i++ {
		if args[i] == "--email" && i+1 < len(args) {
			email = args[i+1]
			i++
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		email = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
		User  user   `json:"user"`
	}
	err = c.do(http.MethodPost, "/api/login", map[string]string{
		"email": email, "password": string(raw),
	}, &resp)
	if err != nil {
		return err
	}

	path := tokenPath()
	if path == "" {
		return fmt.Errorf("cannot resolve token file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(resp.Token), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	color.Green("✓ logged in as %s", resp.User.Email)
	fmt.Printf("  token saved to %s\n", path)
	return nil
}

func cmdMe(c *apiClient) error {
	var me user
	if err := c.do(http.MethodGet, "/api/me", nil, &me); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  ID:      %s\n", me.ID)
	fmt.Printf("  Email:   %s\n", me.Email)
	fmt.Printf("  Name:    %s\n", me.Name)
	if me.Role != "" {
		fmt.Printf("  Role:    %s\n", me.Role)
	} else {
		fmt.Printf("  Role:    (none)\n")
	}
	fmt.Printf("  Active:  %t\n", me.IsActive)
	fmt.Println()
	return nil
}

func cmdUsers(c *apiClient, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdUsersList(c, args)
	case "create", "add":
		return cmdUsersCreate(c, args)
	case "activate":
		return cmdUsersSetActive(c, args, true)
	case "deactivate":
		return cmdUsersSetActive(c, args, false)
	case "role":
		return cmdUsersRole(c, args)
	case "delete", "rm", "remove":
		return cmdUsersDelete(c, args)
	default:
		return fmt.Errorf("unknown users subcommand: %s (use list, create, activate, deactivate, role, delete)", subcmd)
	}
}

func cmdUsersList(c *apiClient, args []string) error {
	var search string
	for i := 0; i < len(args); i++ {
		if (args[i] == "--search" || args[i] == "-s") && i+1 < len(args) {
			search = args[i+1]
			i++
		}
	}

	path := "/api/admin/users"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var resp struct {
		Users []user `json:"users"`
		Total int    `json:"total"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Users")
	cyan.Println("  -----")

	if len(resp.Users) == 0 {
		fmt.Println("  (no users)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tEMAIL\tNAME\tROLE\tACTIVE\tCREATED")
	fmt.Fprintln(w, "  --\t-----\t----\t----\t------\t-------")
	for _, u := range resp.Users {
		role := u.Role
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%t\t%s\n",
			truncate(u.ID, 12), u.Email, truncate(u.Name, 24), role,
			u.IsActive, u.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Printf("\n  %d total\n\n", resp.Total)
	return nil
}

func cmdUsersCreate(c *apiClient, args []string) error {
	var email, name, role string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--role", "-r":
			if i+1 < len(args) {
				role = args[i+1]
				i++
			}
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if email == "" || name == "" {
		return fmt.Errorf("--email and --name are required")
	}

	fmt.Print("Password for new user: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	body := map[string]string{"email": email, "name": name, "password": string(raw)}
	if role != "" {
		body["role"] = role
	}

	var created user
	if err := c.do(http.MethodPost, "/api/admin/users", body, &created); err != nil {
		return err
	}
	color.Green("✓ created user %s (%s)", created.Email, truncate(created.ID, 12))
	return nil
}

func cmdUsersSetActive(c *apiClient, args []string, active bool) error {
	if len(args) < 1 {
		return fmt.Errorf("user id required")
	}
	var updated user
	err := c.do(http.MethodPatch, "/api/admin/users/"+args[0],
		map[string]bool{"is_active": active}, &updated)
	if err != nil {
		return err
	}
	if active {
		color.Green("✓ activated %s", updated.Email)
	} else {
		color.Yellow("✓ deactivated %s", updated.Email)
	}
	return nil
}

func cmdUsersRole(c *apiClient, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: users role <id> <role>")
	}
	var updated user
	err := c.do(http.MethodPatch, "/api/admin/users/"+args[0],
		map[string]string{"role": args[1]}, &updated)
	if err != nil {
		return err
	}
	color.Green("✓ %s is now %s", updated.Email, updated.Role)
	return nil
}

func cmdUsersDelete(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("user id required")
	}
	if err := c.do(http.MethodDelete, "/api/admin/users/"+args[0], nil, nil); err != nil {
		return err
	}
	color.Green("✓ deleted user %s", args[0])
	return nil
}

type auditEntry struct {
	ID          string         `json:"id"`
	ActorUserID string         `json:"actor_user_id"`
	Action      string         `json:"action"`
	TargetType  string         `json:"target_type"`
	TargetID    string         `json:"target_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Detail      map[string]any `json:"detail"`
}

func cmdAudit(c *apiClient, args []string) error {
	query := url.Values{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--action", "-a":
			if i+1 < len(args) {
				query.Set("action", args[i+1])
				i++
			}
		case "--limit", "-l":
			if i+1 < len(args) {
				query.Set("limit", args[i+1])
				i++
			}
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	path := "/api/admin/audit"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var entries []auditEntry
	if err := c.do(http.MethodGet, path, nil, &entries); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Audit Trail")
	cyan.Println("  -----------")

	if len(entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tACTION\tACTOR\tTARGET")
	fmt.Fprintln(w, "  ----\t------\t-----\t------")
	for _, e := range entries {
		target := e.TargetType
		if e.TargetID != "" {
			target += "/" + truncate(e.TargetID, 12)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			e.Timestamp.Format("Jan 02 15:04:05"), e.Action,
			truncate(e.ActorUserID, 12), target)
	}
	w.Flush()
	fmt.Println()
	return nil
}

func cmdSettings(c *apiClient, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		if len(args) < 3 {
			return fmt.Errorf("usage: settings set <key> <value>")
		}
		var settings map[string]string
		err := c.do(http.MethodPatch, "/api/admin/settings",
			map[string]string{args[1]: args[2]}, &settings)
		if err != nil {
			return err
		}
		color.Green("✓ %s = %s", args[1], settings[args[1]])
		return nil
	}

	var settings map[string]string
	if err := c.do(http.MethodGet, "/api/admin/settings", nil, &settings); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Settings")
	cyan.Println("  --------")
	if len(settings) == 0 {
		fmt.Println("  (none set)")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for k, v := range settings {
		fmt.Fprintf(w, "  %s\t%s\n", k, v)
	}
	w.Flush()
	fmt.Println()
	return nil
}

func cmdStats(c *apiClient) error {
	var stats map[string]int
	if err := c.do(http.MethodGet, "/api/admin/stats", nil, &stats); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Stats")
	cyan.Println("  -----")
	fmt.Printf("  Users:               %d\n", stats["users"])
	fmt.Printf("  Chats:               %d\n", stats["chats"])
	fmt.Printf("  Messages:            %d\n", stats["messages"])
	fmt.Printf("  Agents:              %d\n", stats["agents"])
	fmt.Printf("  New users (7d):      %d\n", stats["users_last_7_days"])
	fmt.Printf("  New chats (7d):      %d\n", stats["chats_last_7_days"])
	fmt.Printf("  Active users (7d):   %d\n", stats["active_users_7_days"])
	fmt.Println()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
