// Package config holds OPERATOR-LEVEL configuration for a Domi installation.
//
// Values come from env vars (DOMI_*), an optional config file
// (domi.config.yaml), and a .env file for local development. The agent API
// key may also come from GOOGLE_API_KEY or OPENAI_API_KEY as a quickstart
// fallback.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the DOMI_ prefix
// (e.g. "ner_url" → DOMI_NER_URL) and to a YAML field in domi.config.yaml.
const (
	KeyDataDir          = "data_dir"
	KeyListenAddr       = "listen_addr"
	KeyAPIKey           = "api_key"
	KeyNERURL           = "ner_url"
	KeyNERTimeout       = "ner_timeout"
	KeyPatternFile      = "pattern_file"
	KeyLLMBaseURL       = "llm_base_url"
	KeyLLMModel         = "llm_model"
	KeyLLMAPIKey        = "llm_api_key"
	KeySessionTTL       = "session_ttl"
	KeySweepInterval    = "sweep_interval"
	KeyAccountsFile     = "accounts_file"
	KeyAccountsBackend  = "accounts_backend"
	KeyDebugVault       = "debug_vault"
	KeyRestoreReply     = "restore_reply"
	KeyRateLimit        = "rate_limit"
	KeyRateBurst        = "rate_burst"
	KeyMaxVerifyFailure = "verification_max_failures"
	KeyVerifyWindow     = "verification_window"
)

// Accounts backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Defaults.
const (
	DefaultListenAddr       = ":8080"
	DefaultNERURL           = "http://localhost:8000/predict"
	DefaultNERTimeout       = 30 * time.Second
	DefaultLLMBaseURL       = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultLLMModel         = "gemini-2.5-flash-lite"
	DefaultSessionTTL       = 30 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultAccountsBackend  = BackendMemory
	DefaultRateLimit        = 2.0
	DefaultRateBurst        = 5
	DefaultMaxVerifyFailure = 3
	DefaultVerifyWindow     = 15 * time.Minute
)

// Fallback env vars for the agent API key.
var apiKeyFallbacks = []string{"GOOGLE_API_KEY", "OPENAI_API_KEY"}

// Config holds resolved operator-level configuration for a Domi process.
type Config struct {
	DataDir          string        // Base directory for all state (~/.domi)
	ListenAddr       string        // HTTP listen address
	APIKey           string        // Optional key required on API routes
	NERURL           string        // Entity recognizer endpoint; empty disables it
	NERTimeout       time.Duration // Bound on one recognizer call
	PatternFile      string        // Optional recognizer override file
	LLMBaseURL       string        // OpenAI-compatible endpoint
	LLMModel         string        // Model name
	LLMAPIKey        string        // Agent API key
	SessionTTL       time.Duration // Idle time before a session's vault is discarded; 0 = never
	SweepInterval    time.Duration // How often expired sessions are swept
	AccountsFile     string        // Optional YAML account seed; empty = embedded demo seed
	AccountsBackend  string        // memory | sqlite
	DebugVault       bool          // Expose original text and vault contents in responses
	RestoreReply     bool          // Replace tags in the final reply with their values
	RateLimit        float64       // Requests per second per client address; 0 = unlimited
	RateBurst        int           // Burst size for RateLimit
	MaxVerifyFailure int           // Failed identity checks before lockout
	VerifyWindow     time.Duration // Lockout window

	apiKeySource string
}

// APIKeySource names where the agent API key came from ("" if unset).
func (c *Config) APIKeySource() string {
	return c.apiKeySource
}

// AccountsDBPath returns the full path to the accounts SQLite database.
func (c *Config) AccountsDBPath() string {
	return filepath.Join(c.DataDir, "accounts.db")
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfUnsafe logs warnings for settings that must not reach production.
func (c *Config) WarnIfUnsafe() {
	if c.DebugVault {
		log.Warn().Msg("debug_vault is enabled: responses include raw PII and vault contents")
	}
	if c.apiKeySource != "" && c.apiKeySource != KeyLLMAPIKey {
		log.Warn().Str("source", c.apiKeySource).Msg("agent API key taken from fallback env var; set DOMI_LLM_API_KEY")
	}
	if c.NERURL == "" {
		log.Warn().Msg("ner_url is empty: names and addresses will not be redacted")
	}
	if c.APIKey == "" {
		log.Warn().Msg("api_key not set: API routes are unauthenticated")
	}
}

func init() {
	SetDefaults(viper.GetViper())
}

// SetDefaults registers env binding and defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix("DOMI")
	v.AutomaticEnv()
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyNERURL, DefaultNERURL)
	v.SetDefault(KeyNERTimeout, DefaultNERTimeout)
	v.SetDefault(KeyLLMBaseURL, DefaultLLMBaseURL)
	v.SetDefault(KeyLLMModel, DefaultLLMModel)
	v.SetDefault(KeySessionTTL, DefaultSessionTTL)
	v.SetDefault(KeySweepInterval, DefaultSweepInterval)
	v.SetDefault(KeyAccountsBackend, DefaultAccountsBackend)
	v.SetDefault(KeyDebugVault, false)
	v.SetDefault(KeyRestoreReply, true)
	v.SetDefault(KeyRateLimit, DefaultRateLimit)
	v.SetDefault(KeyRateBurst, DefaultRateBurst)
	v.SetDefault(KeyMaxVerifyFailure, DefaultMaxVerifyFailure)
	v.SetDefault(KeyVerifyWindow, DefaultVerifyWindow)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	v := viper.GetViper()
	cfg := &Config{
		DataDir:          resolveDataDir(v),
		ListenAddr:       v.GetString(KeyListenAddr),
		APIKey:           v.GetString(KeyAPIKey),
		NERURL:           v.GetString(KeyNERURL),
		NERTimeout:       v.GetDuration(KeyNERTimeout),
		PatternFile:      v.GetString(KeyPatternFile),
		LLMBaseURL:       v.GetString(KeyLLMBaseURL),
		LLMModel:         v.GetString(KeyLLMModel),
		LLMAPIKey:        v.GetString(KeyLLMAPIKey),
		SessionTTL:       v.GetDuration(KeySessionTTL),
		SweepInterval:    v.GetDuration(KeySweepInterval),
		AccountsFile:     v.GetString(KeyAccountsFile),
		AccountsBackend:  v.GetString(KeyAccountsBackend),
		DebugVault:       v.GetBool(KeyDebugVault),
		RestoreReply:     v.GetBool(KeyRestoreReply),
		RateLimit:        v.GetFloat64(KeyRateLimit),
		RateBurst:        v.GetInt(KeyRateBurst),
		MaxVerifyFailure: v.GetInt(KeyMaxVerifyFailure),
		VerifyWindow:     v.GetDuration(KeyVerifyWindow),
	}

	if cfg.LLMAPIKey != "" {
		cfg.apiKeySource = KeyLLMAPIKey
	} else {
		for _, env := range apiKeyFallbacks {
			if k := os.Getenv(env); k != "" {
				cfg.LLMAPIKey = k
				cfg.apiKeySource = env
				break
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir(v *viper.Viper) string {
	if dir := v.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".domi"
	}
	return filepath.Join(home, ".domi")
}

func (c *Config) validate() error {
	if c.NERURL != "" {
		if err := validateURL(KeyNERURL, c.NERURL); err != nil {
			return err
		}
	}
	if err := validateURL(KeyLLMBaseURL, c.LLMBaseURL); err != nil {
		return err
	}
	if c.NERTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyNERTimeout)
	}
	if c.LLMModel == "" {
		return fmt.Errorf("%s must be set", KeyLLMModel)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("%s must not be negative", KeySessionTTL)
	}
	if c.SessionTTL > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("%s must be positive when %s is set", KeySweepInterval, KeySessionTTL)
	}
	switch c.AccountsBackend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q (got %q)", KeyAccountsBackend, BackendMemory, BackendSQLite, c.AccountsBackend)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%s must not be negative", KeyRateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("%s must be positive when %s is set", KeyRateBurst, KeyRateLimit)
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL (got %q)", key, raw)
	}
	return nil
}
