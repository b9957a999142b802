package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration, read once at cold start.
type Config struct {
	StateTable  string
	ParamPrefix string
	Suggestion  SuggestionSettings
	OpenAI      OpenAISettings
}

// SuggestionSettings tunes the suggestion request.
type SuggestionSettings struct {
	Model     string   `yaml:"model"`
	MaxTokens int      `yaml:"max_tokens"`
	TopP      *float64 `yaml:"top_p"`
}

// OpenAISettings configures the provider transport.
type OpenAISettings struct {
	BaseURL           string        `yaml:"base_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"-"`
	RawTimeout        string        `yaml:"timeout"` // e.g. "30s", "2m"
}

// fileConfig is the optional YAML overlay.
type fileConfig struct {
	Suggestion SuggestionSettings `yaml:"suggestion"`
	OpenAI     OpenAISettings     `yaml:"openai"`
}

// SecretNames returns the SSM parameter names read at cold start.
func (c Config) SecretNames() (openAIToken, jwtSecret string) {
	prefix := strings.TrimRight(c.ParamPrefix, "/")
	return prefix + "/open-ai-token", prefix + "/jwt-secret"
}

// Load reads an optional dotenv file (".env" when none is given), then the
// environment, then the YAML file named by SUGGESTION_CONFIG_FILE.
// Environment values win over the file.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load dotenv: %w", err)
	}
	return load(os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	var cfg Config
	var err error

	if cfg.StateTable, err = required(lookup, "STATE_TABLE"); err != nil {
		return Config{}, err
	}
	if cfg.ParamPrefix, err = required(lookup, "PARAM_PREFIX"); err != nil {
		return Config{}, err
	}

	if path, ok := lookupTrimmed(lookup, "SUGGESTION_CONFIG_FILE"); ok {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Suggestion = file.Suggestion
		cfg.OpenAI = file.OpenAI
	}
	if cfg.OpenAI.RawTimeout != "" {
		d, err := time.ParseDuration(cfg.OpenAI.RawTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse openai.timeout %q: %w", cfg.OpenAI.RawTimeout, err)
		}
		cfg.OpenAI.Timeout = d
	}

	if v, ok := lookupTrimmed(lookup, "SUGGESTION_MODEL"); ok {
		cfg.Suggestion.Model = v
	}
	if v, ok := lookupTrimmed(lookup, "OPENAI_BASE_URL"); ok {
		cfg.OpenAI.BaseURL = v
	}
	if err := envInt(lookup, "SUGGESTION_MAX_TOKENS", &cfg.Suggestion.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := envInt(lookup, "OPENAI_REQUESTS_PER_MINUTE", &cfg.OpenAI.RequestsPerMinute); err != nil {
		return Config{}, err
	}
	if v, ok := lookupTrimmed(lookup, "SUGGESTION_TOP_P"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse SUGGESTION_TOP_P: %w", err)
		}
		cfg.Suggestion.TopP = &f
	}
	if v, ok := lookupTrimmed(lookup, "OPENAI_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse OPENAI_TIMEOUT: %w", err)
		}
		cfg.OpenAI.Timeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Suggestion.MaxTokens < 0 {
		return errors.New("config: suggestion max tokens must not be negative")
	}
	if p := c.Suggestion.TopP; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("config: suggestion top_p %v out of range [0,1]", *p)
	}
	if c.OpenAI.RequestsPerMinute < 0 {
		return errors.New("config: openai requests per minute must not be negative")
	}
	if c.OpenAI.Timeout < 0 {
		return errors.New("config: openai timeout must not be negative")
	}
	return nil
}

// readFile parses the YAML overlay. A missing file yields a zero overlay.
func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return fc, nil
}

func required(lookup lookupFunc, key string) (string, error) {
	v, ok := lookupTrimmed(lookup, key)
	if !ok {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return v, nil
}

// lookupTrimmed treats blank values as unset.
func lookupTrimmed(lookup lookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envInt(lookup lookupFunc, key string, dst *int) error {
	v, ok := lookupTrimmed(lookup, key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*dst = n
	return nil
}
