// Package config resolves runtime settings from flags, MEDIC_* environment
// variables, and an optional .env file, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigDir = ".medic"
	DefaultRulesFile = "rules.yaml"
	DefaultLogFile   = "audit.jsonl"

	// EnvPrefix namespaces every environment variable this tool reads.
	EnvPrefix = "MEDIC_"
)

// Config is the resolved runtime configuration.
type Config struct {
	ConfigDir string
	RulesPath string
	LogPath   string

	// Target host.
	Host    string
	Port    int
	User    string
	SSHPass string
	SSHKey  string

	// Local filtering model.
	FilterModel   string
	FilterBaseURL string

	// Remote reasoning service.
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Loop bounds.
	MaxTurns       int
	CommandTimeout time.Duration
	ConnectTimeout time.Duration
}

// Load resolves the configuration. Explicit values already set on cfg (from
// flags) win over environment variables, which win over the defaults.
func Load(cfg Config) (*Config, error) {
	// A .env in the working directory only fills variables that are unset.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = filepath.Join(homeDir, DefaultConfigDir)
	}
	if err := ensureDir(cfg.ConfigDir); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if cfg.RulesPath == "" {
		cfg.RulesPath = envOr("RULES", filepath.Join(cfg.ConfigDir, DefaultRulesFile))
	}
	if cfg.LogPath == "" {
		cfg.LogPath = envOr("AUDIT_LOG", filepath.Join(cfg.ConfigDir, DefaultLogFile))
	}

	if cfg.Host == "" {
		cfg.Host = envOr("HOST", "")
	}
	if cfg.Port == 0 {
		cfg.Port = envInt("PORT", 22)
	}
	if cfg.User == "" {
		cfg.User = envOr("USER", "")
	}
	if cfg.SSHPass == "" {
		cfg.SSHPass = envOr("SSH_PASSWORD", "")
	}
	if cfg.SSHKey == "" {
		cfg.SSHKey = envOr("SSH_KEY", "")
	}

	if cfg.FilterModel == "" {
		cfg.FilterModel = envOr("FILTER_MODEL", "gemma:7b")
	}
	if cfg.FilterBaseURL == "" {
		cfg.FilterBaseURL = envOr("FILTER_URL", "http://localhost:11434")
	}

	if cfg.Provider == "" {
		cfg.Provider = envOr("PROVIDER", "openai")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = envOr("API_KEY", "")
	}
	if cfg.Model == "" {
		cfg.Model = envOr("MODEL", "")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = envOr("BASE_URL", "")
	}

	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = envInt("MAX_TURNS", 10)
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = envDuration("COMMAND_TIMEOUT", 60*time.Second)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = envDuration("CONNECT_TIMEOUT", 30*time.Second)
	}

	return &cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0o700)
	}
	return nil
}
