package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultBotID, cfg.BotID)
	assert.Equal(t, DefaultReconcileSpec, cfg.ReconcileSpec)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.ReconcileRepair)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("CHATBOT_ID", "helper-9000")
	t.Setenv("RECONCILE_REPAIR", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "helper-9000", cfg.BotID)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.ReconcileRepair)
}

func TestValidate(t *testing.T) {
	cfg := &Config{ListenAddr: "x", DBPath: "y", BotID: "z"}
	require.NoError(t, cfg.Validate())

	cfg.BotID = ""
	assert.Error(t, cfg.Validate())
}
