// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "rightsguard", cfg.Logger().ServiceName)
	assert.Equal(t, 9222, cfg.Browser().DebugPort)
	assert.Equal(t, "http://127.0.0.1:9222", cfg.Browser().DebugURL())
	assert.Equal(t, 30*time.Second, cfg.Browser().LaunchTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser().SettleDelay)
	assert.Equal(t, 10*time.Minute, cfg.Verification().Timeout)
	assert.Equal(t, EngineProcess, cfg.Engine().Kind)
	assert.Equal(t, 15*time.Minute, cfg.Engine().Timeout)
	assert.NotEmpty(t, cfg.Appeal().TargetURL)
	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Browser Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BrowserCfg.DebugPort = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.debug_port")

		cfg = NewDefaultConfig()
		cfg.BrowserCfg.LaunchTimeout = 0
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.launch_timeout")
	})

	t.Run("Engine Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.EngineCfg.Kind = "selenium"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine configuration invalid")

		cfg = NewDefaultConfig()
		cfg.SetEngineKind(EngineCDP)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Verification Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.VerificationCfg.Timeout = -time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verification.timeout")
	})

	t.Run("Appeal Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.AppealCfg.TargetURL = "  "
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "appeal.target_url")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
browser:
  debug_port: 9333
  launch_timeout: 45s
engine:
  kind: cdp
verification:
  timeout: 2m
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 9333, cfg.Browser().DebugPort)
	assert.Equal(t, 45*time.Second, cfg.Browser().LaunchTimeout)
	assert.Equal(t, EngineCDP, cfg.Engine().Kind)
	assert.Equal(t, 2*time.Minute, cfg.Verification().Timeout)
	// Untouched keys fall back to defaults.
	assert.Equal(t, "127.0.0.1", cfg.Browser().DebugHost)
}

func TestNewConfigFromViper_DatabaseEnv(t *testing.T) {
	t.Setenv("RIGHTSGUARD_DATABASE_URL", "postgres://u:p@localhost/rg")
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/rg", cfg.Database().URL)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.timeout", "0s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetGet(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetAPIListenAddr("127.0.0.1:9999")
	Set(cfg)
	t.Cleanup(func() { Set(nil) })

	assert.Equal(t, "127.0.0.1:9999", Get().API().ListenAddr)
}
