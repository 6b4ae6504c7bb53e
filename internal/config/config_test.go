package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
typesense:
  host: search.internal
  port: 443
  protocol: https
  api_key: secret
fields:
  defaultFields:
    Blog:
      extraDateFields: [publishedAt]
      exclude: [body]
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "search.internal", cfg.Typesense.Host)
	assert.Equal(t, 443, cfg.Typesense.Port)
	assert.Equal(t, "https", cfg.Typesense.Protocol)
	assert.Equal(t, 5*time.Second, cfg.Typesense.ConnectionTimeout)
	assert.Equal(t, []string{"publishedAt"}, cfg.Fields.ExtraDateFields("Blog"))
	assert.Equal(t, []string{"body"}, cfg.Fields.DefaultFields["Blog"].Exclude)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TYPESENSE_HOST":       "localhost",
		"TYPESENSE_PORT":       "8108",
		"TYPESENSE_PROTOCOL":   "http",
		"TYPESENSE_API_KEY":    "xyz",
		"TYPESENSE_FIELDS_MAP": `{"defaultFields":{"Blog":{"extraDateFields":["publishedAt","archivedAt"]}}}`,
		"LOG_LEVEL":            "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var cfg Config
	require.NoError(t, cfg.applyEnv(lookup))
	cfg.setDefaults()

	assert.Equal(t, "localhost", cfg.Typesense.Host)
	assert.Equal(t, 8108, cfg.Typesense.Port)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
	assert.Equal(t, []string{"publishedAt", "archivedAt"}, cfg.Fields.ExtraDateFields("Blog"))
	assert.Empty(t, cfg.Fields.ExtraDateFields("Post"))
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvInvalidPort(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "TYPESENSE_PORT" {
			return "http", true
		}
		return "", false
	}
	var cfg Config
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestParseFieldsMapInvalid(t *testing.T) {
	_, err := ParseFieldsMap(`{"defaultFields": [`)
	assert.Error(t, err)

	fm, err := ParseFieldsMap("")
	require.NoError(t, err)
	assert.Nil(t, fm.ExtraDateFields("Blog"))
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
	assert.Contains(t, err.Error(), "api key")

	cfg.Typesense.Host = "localhost"
	cfg.Typesense.APIKeyParameter = "/typesense/api-key"
	cfg.Cache.Backend = "redis"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis url")

	cfg.Cache.Backend = "memcached"
	assert.Error(t, cfg.Validate())
}
