// ABOUTME: Package documentation for the config package
// ABOUTME: Describes the YAML format, env expansion, and defaulting rules

// Package config loads parley-server configuration from YAML.
//
// Files may reference environment variables with ${VAR_NAME}; expansion
// happens on the raw file contents before unmarshaling, so secrets like
// auth.jwt_secret and completion.api_key can stay out of the file itself.
// Duration fields accept Go duration strings ("30s", "5m"). Optional fields
// fall back to the Default* constants; Validate rejects configs missing
// the database path, JWT secret, or completion base URL.
package config
