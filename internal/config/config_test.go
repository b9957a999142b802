package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"STATE_TABLE":  "campaigns",
		"PARAM_PREFIX": "/campaign-assistant",
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(mapLookup(baseEnv()))
	require.NoError(t, err)
	require.Equal(t, "campaigns", cfg.StateTable)
	require.Equal(t, "/campaign-assistant", cfg.ParamPrefix)
	require.Equal(t, SuggestionSettings{}, cfg.Suggestion)
	require.Zero(t, cfg.OpenAI.Timeout)
}

func TestLoad_RequiredVariables(t *testing.T) {
	for _, key := range []string{"STATE_TABLE", "PARAM_PREFIX"} {
		env := baseEnv()
		env[key] = "  "
		_, err := load(mapLookup(env))
		require.Error(t, err)
		require.Contains(t, err.Error(), key)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	env := baseEnv()
	env["SUGGESTION_MODEL"] = "gpt-4o-mini"
	env["SUGGESTION_MAX_TOKENS"] = "512"
	env["SUGGESTION_TOP_P"] = "0.9"
	env["OPENAI_BASE_URL"] = "http://localhost:8080/v1"
	env["OPENAI_REQUESTS_PER_MINUTE"] = "60"
	env["OPENAI_TIMEOUT"] = "45s"

	cfg, err := load(mapLookup(env))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.Suggestion.Model)
	require.Equal(t, 512, cfg.Suggestion.MaxTokens)
	require.NotNil(t, cfg.Suggestion.TopP)
	require.Equal(t, 0.9, *cfg.Suggestion.TopP)
	require.Equal(t, "http://localhost:8080/v1", cfg.OpenAI.BaseURL)
	require.Equal(t, 60, cfg.OpenAI.RequestsPerMinute)
	require.Equal(t, 45*time.Second, cfg.OpenAI.Timeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"SUGGESTION_MAX_TOKENS":      "lots",
		"SUGGESTION_TOP_P":           "1.5",
		"OPENAI_REQUESTS_PER_MINUTE": "-1",
		"OPENAI_TIMEOUT":             "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			env[key] = val
			_, err := load(mapLookup(env))
			require.Error(t, err)
		})
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeFile(t, "suggestion.yaml", `
suggestion:
  model: gpt-4o
  max_tokens: 800
  top_p: 0.5
openai:
  base_url: https://proxy.internal/v1
  requests_per_minute: 30
  timeout: 2m
`)
	env := baseEnv()
	env["SUGGESTION_CONFIG_FILE"] = path
	env["SUGGESTION_MODEL"] = "gpt-4o-mini"

	cfg, err := load(mapLookup(env))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.Suggestion.Model, "environment wins over file")
	require.Equal(t, 800, cfg.Suggestion.MaxTokens)
	require.Equal(t, 0.5, *cfg.Suggestion.TopP)
	require.Equal(t, "https://proxy.internal/v1", cfg.OpenAI.BaseURL)
	require.Equal(t, 30, cfg.OpenAI.RequestsPerMinute)
	require.Equal(t, 2*time.Minute, cfg.OpenAI.Timeout)
}

func TestLoad_YAMLMissingFileIsIgnored(t *testing.T) {
	env := baseEnv()
	env["SUGGESTION_CONFIG_FILE"] = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := load(mapLookup(env))
	require.NoError(t, err)
}

func TestLoad_YAMLMalformed(t *testing.T) {
	env := baseEnv()
	env["SUGGESTION_CONFIG_FILE"] = writeFile(t, "bad.yaml", "suggestion: [unclosed")
	_, err := load(mapLookup(env))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing")

	env["SUGGESTION_CONFIG_FILE"] = writeFile(t, "bad-timeout.yaml", "openai:\n  timeout: later\n")
	_, err = load(mapLookup(env))
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai.timeout")
}

func TestLoad_DotEnvFile(t *testing.T) {
	for _, key := range []string{"STATE_TABLE", "PARAM_PREFIX", "SUGGESTION_MODEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := writeFile(t, ".env", "STATE_TABLE=from-dotenv\nPARAM_PREFIX=/dotenv\nSUGGESTION_MODEL=gpt-4o\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.StateTable)
	require.Equal(t, "/dotenv", cfg.ParamPrefix)
	require.Equal(t, "gpt-4o", cfg.Suggestion.Model)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("STATE_TABLE", "t")
	t.Setenv("PARAM_PREFIX", "/p")
	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	require.Equal(t, "t", cfg.StateTable)
}

func TestSecretNames(t *testing.T) {
	token, jwtSecret := Config{ParamPrefix: "/campaign-assistant/"}.SecretNames()
	require.Equal(t, "/campaign-assistant/open-ai-token", token)
	require.Equal(t, "/campaign-assistant/jwt-secret", jwtSecret)
}
