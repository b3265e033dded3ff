package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"basic_config": {"server_address": ":9000"},
		"n8n": {"base_url": "https://n8n.example.com/"},
		"databases": {"sqlite3": {"dsn": "data/copydesk.db"}}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "https://n8n.example.com", cfg.N8N.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.N8N.ListTimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.N8N.ChatTimeoutDuration())
	assert.Equal(t, "/webhook/chat-window", cfg.N8N.Paths.ChatWindow)
	assert.Equal(t, filepath.Join(dir, "data/copydesk.db"), cfg.Databases["sqlite3"].DSN)
	assert.Equal(t, "sqlite3", cfg.BasicConfig.StoreDriver)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
basic_config:
  store_driver: redis
n8n:
  base_url: http://localhost:5678
  chat_timeout_seconds: 45
  paths:
    agents: /webhook/custom-agents
redis:
  host: cache
  port: 6380
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.BasicConfig.StoreDriver)
	assert.Equal(t, 45*time.Second, cfg.N8N.ChatTimeoutDuration())
	assert.Equal(t, "/webhook/custom-agents", cfg.N8N.Paths.Agents)
	assert.Equal(t, "/webhook/new-chat", cfg.N8N.Paths.NewChat)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"n8n": {"base_url": "http://file"}}`), 0o600))
	t.Setenv("COPYDESK_SERVER_ADDRESS", ":7777")
	t.Setenv("COPYDESK_N8N_BASE_URL", "http://env")
	t.Setenv("COPYDESK_REDIS_PORT", "6390")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "http://env", cfg.N8N.BaseURL)
	assert.Equal(t, 6390, cfg.Redis.Port)
}

func TestLoadRequiresBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
