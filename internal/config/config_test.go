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

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "formbridge", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 60*time.Second, cfg.Browser().NavigationTimeout)
	assert.True(t, cfg.FormFill().IncludeHidden)
	assert.Equal(t, 10*time.Second, cfg.Bridge().ReplyTimeout)
	assert.Equal(t, "tr.ms-tr.custom-class", cfg.Grid().RowSelector)
	assert.Equal(t, "tr.ms-tr", cfg.Grid().FallbackRowSelector)
	assert.Equal(t, 6, cfg.Grid().MaxAttempts)
	assert.Equal(t, time.Second, cfg.Grid().RetryDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.Grid().SettleDelay)
	assert.Equal(t, []string{"setRowValue", "setRowData", "updateRow", "insertRow", "addRow"}, cfg.Grid().Methods)
	require.Len(t, cfg.Grid().Accessors, 2)
	assert.Equal(t, AccessorConfig{Kind: AccessorMethod, Name: "getVueInstance"}, cfg.Grid().Accessors[0])
	assert.Equal(t, AccessorConfig{Kind: AccessorProperty, Name: "__vue__"}, cfg.Grid().Accessors[1])

	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Bridge Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BridgeCfg.ReplyTimeout = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reply_timeout must be a positive duration")
	})

	t.Run("Grid Attempts", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.GridCfg.MaxAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_attempts must be at least 1")
	})

	t.Run("Grid Accessor Kind", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.GridCfg.Accessors = append(cfg.GridCfg.Accessors, AccessorConfig{Kind: "reflection", Name: "_vnode"})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown kind "reflection"`)
	})

	t.Run("Grid Methods Required", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.GridCfg.Methods = nil
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data-assignment method")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
grid:
  row_selector: "tr.data-row"
  max_attempts: 3
  retry_delay: 250ms
  methods: ["applyRow"]
  accessors:
    - kind: property
      name: __vueParentComponent
bridge:
  reply_timeout: 2s
`)
		v := viper.New()
		SetDefaults(v) // Set defaults first
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "tr.data-row", cfg.Grid().RowSelector)
		assert.Equal(t, 3, cfg.Grid().MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Grid().RetryDelay)
		assert.Equal(t, []string{"applyRow"}, cfg.Grid().Methods)
		assert.Equal(t, []AccessorConfig{{Kind: AccessorProperty, Name: "__vueParentComponent"}}, cfg.Grid().Accessors)
		assert.Equal(t, 2*time.Second, cfg.Bridge().ReplyTimeout)
		// Check a default value was also loaded
		assert.Equal(t, "table.ms-table", cfg.Grid().TableSelector)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("grid.max_attempts", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		t.Setenv("FORMBRIDGE_CHROME_PATH", "/opt/chromium/chrome")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/opt/chromium/chrome", cfg.Browser().ExecPath)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserExecPath("/usr/bin/chromium")
	cfg.SetFormFillIncludeHidden(false)
	cfg.SetGridRowSelector("tr.row")

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser().ExecPath)
	assert.False(t, cfg.FormFill().IncludeHidden)
	assert.Equal(t, "tr.row", cfg.Grid().RowSelector)
}
