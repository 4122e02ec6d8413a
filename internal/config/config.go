// Package config handles quill configuration
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cloud-shuttle/quill/internal/conversation"
	"github.com/cloud-shuttle/quill/internal/fallback"
	"github.com/cloud-shuttle/quill/internal/llm"
)

// ErrMissingCredential is returned when no API token is configured
var ErrMissingCredential = errors.New("missing credential: set HF_TOKEN in the environment or settings file")

// DefaultEnvFile is the settings file read from the working directory
const DefaultEnvFile = ".env"

// Settings keys
const (
	KeyToken         = "HF_TOKEN"
	KeyBaseURL       = "QUILL_BASE_URL"
	KeyBackends      = "QUILL_BACKENDS"
	KeyHistoryChars  = "QUILL_HISTORY_CHARS"
	KeySession       = "QUILL_SESSION"
	KeySessionPolicy = "QUILL_SESSION_POLICY"
	KeyCompression   = "QUILL_COMPRESSION"
	KeySystemPrompt  = "QUILL_SYSTEM_PROMPT"
	KeyTimeout       = "QUILL_TIMEOUT"
	KeyChunkTokens   = "QUILL_CHUNK_TOKENS"
	KeyLogFormat     = "QUILL_LOG_FORMAT"
)

// Config holds quill configuration
type Config struct {
	// Router credential and endpoint
	APIKey  string
	BaseURL string

	// Backend preference order; empty lets the router choose
	Backends []string

	// History replay budget in characters
	HistoryChars int

	// Session storage
	SessionPath   string
	SessionPolicy conversation.Policy
	Compression   conversation.CompressionType

	// Request settings
	SystemPrompt string
	Timeout      time.Duration
	ChunkTokens  int

	// Log output format, "text" or "json"
	LogFormat string

	// EnvFile is the settings file that was read, empty if none
	EnvFile string
}

// Options controls where settings come from
type Options struct {
	// EnvFile is a dotenv settings file. A missing file is ignored unless
	// Required is set.
	EnvFile  string
	Required bool
}

// Load reads the settings file, then lets the process environment
// override it.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")

	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}
	loaded, err := loadEnvFile(v, opts.EnvFile, !opts.Required)
	if err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		APIKey:       strings.TrimSpace(v.GetString(KeyToken)),
		BaseURL:      v.GetString(KeyBaseURL),
		Backends:     append([]string(nil), fallback.DefaultBackends...),
		HistoryChars: parseIntOrDefault(v.GetString(KeyHistoryChars), conversation.DefaultHistoryChars),
		SessionPath:  v.GetString(KeySession),
		Compression:  conversation.CompressionType(strings.ToLower(v.GetString(KeyCompression))),
		SystemPrompt: v.GetString(KeySystemPrompt),
		Timeout:      parseDurationOrDefault(v.GetString(KeyTimeout), 10*time.Minute),
		ChunkTokens:  parseIntOrDefault(v.GetString(KeyChunkTokens), 4096),
		LogFormat:    v.GetString(KeyLogFormat),
	}
	if loaded {
		cfg.EnvFile = opts.EnvFile
	}

	if v.IsSet(KeyBackends) {
		list := v.GetString(KeyBackends)
		if strings.EqualFold(strings.TrimSpace(list), "auto") {
			list = ""
		}
		cfg.Backends = fallback.ParseBackends(list)
	}

	if cfg.SessionPolicy, err = conversation.ParsePolicy(v.GetString(KeySessionPolicy)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeySessionPolicy, err)
	}
	if _, err := conversation.NewCompressor(cfg.Compression); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyCompression, err)
	}
	if cfg.HistoryChars < 0 {
		return nil, fmt.Errorf("%s must not be negative", KeyHistoryChars)
	}

	return cfg, nil
}

// Validate checks the settings needed to reach the router
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingCredential
	}
	if c.ChunkTokens <= 0 {
		return fmt.Errorf("%s must be positive", KeyChunkTokens)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, llm.DefaultBaseURL)
	v.SetDefault(KeySession, ".quill/session.jsonl")
	v.SetDefault(KeySessionPolicy, string(conversation.PolicyStrict))
	v.SetDefault(KeyCompression, string(conversation.CompressionNone))
	v.SetDefault(KeyLogFormat, "text")
}

// loadEnvFile reads a dotenv file into v and reports whether it existed
func loadEnvFile(v *viper.Viper, path string, optional bool) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	defer f.Close()

	if err := v.ReadConfig(f); err != nil {
		return false, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return true, nil
}

func parseIntOrDefault(s string, def int) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return def
	}
	return i
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
