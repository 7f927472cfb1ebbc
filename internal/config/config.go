// Package config loads server configuration from command-line flags,
// environment variables, a .env file and defaults, in that order.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Server   ServerConfig
	Auth     AuthConfig
	Taxonomy TaxonomyConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage locations.
type DataConfig struct {
	// BasePath holds the database, the search index and the auth key.
	BasePath string
}

// DatabasePath is the sqlite database file.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.BasePath, "kopa.db")
}

// IndexPath is the directory holding the tag search index.
func (d DataConfig) IndexPath() string {
	return filepath.Join(d.BasePath, "search")
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port               string        // default: 8080
	ReadTimeout        time.Duration // default: 15s
	WriteTimeout       time.Duration // default: 15s, not applied to SSE streams
	IdleTimeout        time.Duration // default: 60s
	CORSAllowedOrigins []string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key, set from auth.LoadOrGenerateKey at startup.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration // default: 24h
	LoginRatePerMinute  int           // default: 10
}

// TaxonomyConfig holds limits for search and the suggestion workflow.
type TaxonomyConfig struct {
	MaxPendingSuggestions int  // per user, default: 5
	SearchDefaultLimit    int  // default: 5
	SearchMaxLimit        int  // default: 50
	SearchMaxCandidates   int  // default: 100
	SearchMinQueryLength  int  // default: 2
	SearchIndexEnabled    bool // default: true
}

// DefaultTaxonomy returns the taxonomy limits used when nothing is configured.
func DefaultTaxonomy() TaxonomyConfig {
	return TaxonomyConfig{
		MaxPendingSuggestions: 5,
		SearchDefaultLimit:    5,
		SearchMaxLimit:        50,
		SearchMaxCandidates:   100,
		SearchMinQueryLength:  2,
		SearchIndexEnabled:    true,
	}
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("kopa", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the database, search index and auth key")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 24h)")
	loginRate := fs.String("login-rate", "", "Login attempts per minute per address (default: 10)")

	maxPending := fs.String("max-pending-suggestions", "", "Pending tag suggestions allowed per user (default: 5)")
	searchIndex := fs.String("search-index", "", "Use the full-text candidate index (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is normal.
	if err := loadEnvFile(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	defaults := DefaultTaxonomy()
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSAllowedOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Auth: AuthConfig{
			LoginRatePerMinute: getIntConfigValue(*loginRate, "LOGIN_RATE_PER_MINUTE", 10),
		},
		Taxonomy: TaxonomyConfig{
			MaxPendingSuggestions: getIntConfigValue(*maxPending, "MAX_PENDING_SUGGESTIONS", defaults.MaxPendingSuggestions),
			SearchDefaultLimit:    getIntConfigValue("", "SEARCH_DEFAULT_LIMIT", defaults.SearchDefaultLimit),
			SearchMaxLimit:        getIntConfigValue("", "SEARCH_MAX_LIMIT", defaults.SearchMaxLimit),
			SearchMaxCandidates:   getIntConfigValue("", "SEARCH_MAX_CANDIDATES", defaults.SearchMaxCandidates),
			SearchMinQueryLength:  getIntConfigValue("", "SEARCH_MIN_QUERY_LENGTH", defaults.SearchMinQueryLength),
			SearchIndexEnabled:    getBoolConfigValue(*searchIndex, "SEARCH_INDEX_ENABLED", defaults.SearchIndexEnabled),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h", &cfg.Auth.AccessTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Auth.AccessTokenDuration <= 0 {
		return errors.New("ACCESS_TOKEN_DURATION must be positive")
	}

	t := c.Taxonomy
	switch {
	case t.MaxPendingSuggestions < 1:
		return errors.New("MAX_PENDING_SUGGESTIONS must be at least 1")
	case t.SearchMinQueryLength < 1:
		return errors.New("SEARCH_MIN_QUERY_LENGTH must be at least 1")
	case t.SearchDefaultLimit < 1 || t.SearchDefaultLimit > t.SearchMaxLimit:
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be between 1 and %d", t.SearchMaxLimit)
	case t.SearchMaxCandidates < t.SearchMaxLimit:
		return errors.New("SEARCH_MAX_CANDIDATES must not be below SEARCH_MAX_LIMIT")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data path to ~/.kopa.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, ".kopa"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
// Variables already set in the environment are left alone.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
