// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers env var expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
server:
  http_addr: ":9090"
database:
  path: /tmp/parley.db
auth:
  jwt_secret: super-secret
  session_ttl: 24h
completion:
  base_url: https://api.example.com/v1
  api_key: sk-test
  model: gpt-5-mini
  request_timeout: 2m
  idle_timeout: 30s
logging:
  level: debug
  format: json
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/parley.db", cfg.Database.Path)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "https://api.example.com/v1", cfg.Completion.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Completion.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Completion.IdleTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  path: /tmp/parley.db
auth:
  jwt_secret: secret
completion:
  base_url: https://api.example.com/v1
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Completion.RequestTimeout)
	assert.Equal(t, DefaultIdleTimeout, cfg.Completion.IdleTimeout)
	assert.Equal(t, DefaultModel, cfg.Completion.Model)
	assert.Equal(t, DefaultTitleModel, cfg.Completion.TitleModel)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Titles.AutoTitleEnabled())
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_SECRET", "from-env")
	t.Setenv("PARLEY_TEST_KEY", "sk-env")

	cfg, err := Parse([]byte(`
database:
  path: /tmp/parley.db
auth:
  jwt_secret: ${PARLEY_TEST_SECRET}
completion:
  base_url: https://api.example.com/v1
  api_key: ${PARLEY_TEST_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "sk-env", cfg.Completion.APIKey)
}

func TestParse_UnsetEnvVarFailsValidation(t *testing.T) {
	_, err := Parse([]byte(`
database:
  path: /tmp/parley.db
auth:
  jwt_secret: ${PARLEY_DEFINITELY_UNSET_VAR}
completion:
  base_url: https://api.example.com/v1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`
database:
  path: /tmp/parley.db
auth:
  jwt_secret: secret
  session_ttl: not-a-duration
completion:
  base_url: https://api.example.com/v1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_ttl")
}

func TestParse_MissingRequired(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing database path",
			content: `
auth:
  jwt_secret: secret
completion:
  base_url: https://api.example.com/v1
`,
			want: "database.path",
		},
		{
			name: "missing jwt secret",
			content: `
database:
  path: /tmp/parley.db
completion:
  base_url: https://api.example.com/v1
`,
			want: "auth.jwt_secret",
		},
		{
			name: "missing completion base url",
			content: `
database:
  path: /tmp/parley.db
auth:
  jwt_secret: secret
`,
			want: "completion.base_url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParse_TitlesDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  path: /tmp/parley.db
auth:
  jwt_secret: secret
completion:
  base_url: https://api.example.com/v1
titles:
  enabled: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Titles.AutoTitleEnabled())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
