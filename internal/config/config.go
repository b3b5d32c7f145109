// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	FormFill() FormFillConfig
	Bridge() BridgeConfig
	Grid() GridConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)

	// FormFill Setters
	SetFormFillIncludeHidden(bool)

	// Grid Setters
	SetGridRowSelector(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	FormFillCfg FormFillConfig `mapstructure:"formfill" yaml:"formfill"`
	BridgeCfg   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	GridCfg     GridConfig     `mapstructure:"grid" yaml:"grid"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) FormFill() FormFillConfig { return c.FormFillCfg }
func (c *Config) Bridge() BridgeConfig     { return c.BridgeCfg }
func (c *Config) Grid() GridConfig         { return c.GridCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string)     { c.BrowserCfg.ExecPath = p }
func (c *Config) SetFormFillIncludeHidden(b bool) { c.FormFillCfg.IncludeHidden = b }
func (c *Config) SetGridRowSelector(s string)     { c.GridCfg.RowSelector = s }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the controlled Chromium instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// IsolatedWorld names the world the automation side evaluates in.
	IsolatedWorld string `mapstructure:"isolated_world" yaml:"isolated_world"`
}

// FormFillConfig tunes the flat form filler.
type FormFillConfig struct {
	// IncludeHidden counts CSS-hidden elements when resolving positional identifiers.
	IncludeHidden bool `mapstructure:"include_hidden" yaml:"include_hidden"`
	// NotifyPage shows the batch summary as a toast inside the page.
	NotifyPage bool `mapstructure:"notify_page" yaml:"notify_page"`
}

// BridgeConfig tunes the cross-context message channel.
type BridgeConfig struct {
	ReplyTimeout time.Duration `mapstructure:"reply_timeout" yaml:"reply_timeout"`
	RowInterval  time.Duration `mapstructure:"row_interval" yaml:"row_interval"`
	BufferSize   int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	BindingName  string        `mapstructure:"binding_name" yaml:"binding_name"`
}

// AccessorConfig names one way of reaching a component instance from a row element.
// Kind is "method" (call Name on the element) or "property" (read Name).
type AccessorConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	Name string `mapstructure:"name" yaml:"name"`
}

// GridConfig holds the row locator selectors and the probing/retry policy.
type GridConfig struct {
	ContainerSelector     string           `mapstructure:"container_selector" yaml:"container_selector"`
	TableSelector         string           `mapstructure:"table_selector" yaml:"table_selector"`
	RowSelector           string           `mapstructure:"row_selector" yaml:"row_selector"`
	FallbackRowSelector   string           `mapstructure:"fallback_row_selector" yaml:"fallback_row_selector"`
	InsertControlSelector string           `mapstructure:"insert_control_selector" yaml:"insert_control_selector"`
	AddRowSelector        string           `mapstructure:"add_row_selector" yaml:"add_row_selector"`
	MaxAttempts           int              `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay            time.Duration    `mapstructure:"retry_delay" yaml:"retry_delay"`
	SettleDelay           time.Duration    `mapstructure:"settle_delay" yaml:"settle_delay"`
	Accessors             []AccessorConfig `mapstructure:"accessors" yaml:"accessors"`
	Methods               []string         `mapstructure:"methods" yaml:"methods"`
}

const (
	AccessorMethod   = "method"
	AccessorProperty = "property"
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formbridge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.isolated_world", "formbridge")

	// -- Form Fill --
	v.SetDefault("formfill.include_hidden", true)
	v.SetDefault("formfill.notify_page", true)

	// -- Bridge --
	v.SetDefault("bridge.reply_timeout", "10s")
	v.SetDefault("bridge.row_interval", "1s")
	v.SetDefault("bridge.buffer_size", 64)
	v.SetDefault("bridge.binding_name", "__formbridgeRelay")

	// -- Grid --
	v.SetDefault("grid.container_selector", ".vfm__content.modal-content")
	v.SetDefault("grid.table_selector", "table.ms-table")
	v.SetDefault("grid.row_selector", "tr.ms-tr.custom-class")
	v.SetDefault("grid.fallback_row_selector", "tr.ms-tr")
	v.SetDefault("grid.insert_control_selector", ".row-editor-action.insert")
	v.SetDefault("grid.add_row_selector", `button[title*="Thêm"], button[title*="Add"], .ms-button-add, .add-row-btn`)
	v.SetDefault("grid.max_attempts", 6)
	v.SetDefault("grid.retry_delay", "1s")
	v.SetDefault("grid.settle_delay", "800ms")
	v.SetDefault("grid.accessors", []map[string]interface{}{
		{"kind": AccessorMethod, "name": "getVueInstance"},
		{"kind": AccessorProperty, "name": "__vue__"},
	})
	v.SetDefault("grid.methods", []string{"setRowValue", "setRowData", "updateRow", "insertRow", "addRow"})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The browser binary location is commonly provided by the environment.
	_ = v.BindEnv("browser.exec_path", "FORMBRIDGE_CHROME_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in user-supplied file paths.
func (c *Config) expandPaths() error {
	var err error
	if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
		return fmt.Errorf("logger.log_file: %w", err)
	}
	if c.BrowserCfg.ExecPath, err = homedir.Expand(c.BrowserCfg.ExecPath); err != nil {
		return fmt.Errorf("browser.exec_path: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.BridgeCfg.Validate(); err != nil {
		return fmt.Errorf("bridge configuration invalid: %w", err)
	}
	if err := c.GridCfg.Validate(); err != nil {
		return fmt.Errorf("grid configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the bridge settings.
func (b *BridgeConfig) Validate() error {
	if b.ReplyTimeout <= 0 {
		return fmt.Errorf("reply_timeout must be a positive duration")
	}
	if b.RowInterval < 0 {
		return fmt.Errorf("row_interval must not be negative")
	}
	if b.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative")
	}
	if b.BindingName == "" {
		return fmt.Errorf("binding_name is required")
	}
	return nil
}

// Validate checks the grid locator and probing settings.
func (g *GridConfig) Validate() error {
	if g.ContainerSelector == "" || g.TableSelector == "" || g.RowSelector == "" || g.InsertControlSelector == "" {
		return fmt.Errorf("container_selector, table_selector, row_selector and insert_control_selector are required")
	}
	if g.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if g.RetryDelay < 0 || g.SettleDelay < 0 {
		return fmt.Errorf("retry_delay and settle_delay must not be negative")
	}
	if len(g.Methods) == 0 {
		return fmt.Errorf("at least one data-assignment method is required")
	}
	if len(g.Accessors) == 0 {
		return fmt.Errorf("at least one instance accessor is required")
	}
	for i, a := range g.Accessors {
		if a.Name == "" {
			return fmt.Errorf("accessors[%d]: name is required", i)
		}
		if a.Kind != AccessorMethod && a.Kind != AccessorProperty {
			return fmt.Errorf("accessors[%d]: unknown kind %q", i, a.Kind)
		}
	}
	return nil
}
