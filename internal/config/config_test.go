package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INSTANCE_ID", "node-a")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "chat-messages", cfg.ChatStream)
	assert.Equal(t, int64(10000), cfg.ChatStreamMaxLen)
	assert.Equal(t, 2*time.Second, cfg.ChatBlockTimeout)
	assert.Equal(t, 64, cfg.WSSendBuffer)
	assert.Equal(t, "node-a", cfg.InstanceID)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "PORT=9090\nDATABASE_URL=postgres://party@db/party\nREDIS_DB=3\nCHAT_BLOCK_TIMEOUT=250ms\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://party@db/party", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 250*time.Millisecond, cfg.ChatBlockTimeout)
	assert.NotEmpty(t, cfg.InstanceID, "instance id falls back to hostname or uuid")
}

func TestLoad_InstanceIDDefaultsToHostAndPid(t *testing.T) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		t.Skip("no hostname available")
	}
	t.Setenv("INSTANCE_ID", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s-%d", host, os.Getpid()), cfg.InstanceID)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9090\n"), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("CHAT_STREAM", "party-chat")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "party-chat", cfg.ChatStream)
}
