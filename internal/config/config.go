// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components depend on it rather than on *Config so tests can hand in fixtures.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Verification() VerificationConfig
	Appeal() AppealConfig
	API() APIConfig

	// Setters used by CLI flag overrides.
	SetBrowserDebugPort(port int)
	SetEngineKind(kind string)
	SetAPIListenAddr(addr string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	BrowserCfg      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	EngineCfg       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	VerificationCfg VerificationConfig `mapstructure:"verification" yaml:"verification"`
	AppealCfg       AppealConfig       `mapstructure:"appeal" yaml:"appeal"`
	APICfg          APIConfig          `mapstructure:"api" yaml:"api"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig         { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig           { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig             { return c.EngineCfg }
func (c *Config) Verification() VerificationConfig { return c.VerificationCfg }
func (c *Config) Appeal() AppealConfig             { return c.AppealCfg }
func (c *Config) API() APIConfig                   { return c.APICfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserDebugPort(port int) { c.BrowserCfg.DebugPort = port }
func (c *Config) SetEngineKind(kind string)    { c.EngineCfg.Kind = kind }
func (c *Config) SetAPIListenAddr(addr string) { c.APICfg.ListenAddr = addr }

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

// ColorConfig defines the color for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig points at the case/profile store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig controls how the debuggable browser session is found or launched.
type BrowserConfig struct {
	DebugHost string `mapstructure:"debug_host" yaml:"debug_host"`
	DebugPort int    `mapstructure:"debug_port" yaml:"debug_port"`
	// BinaryPath overrides the OS candidate list when set.
	BinaryPath string `mapstructure:"binary_path" yaml:"binary_path"`
	// ProcessName is matched when looking for a browser running without the debug flag.
	ProcessName string `mapstructure:"process_name" yaml:"process_name"`
	// UserDataDir is the app-private profile directory; "~" is expanded.
	UserDataDir   string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DebugAddr returns host:port of the remote debugging endpoint.
func (b BrowserConfig) DebugAddr() string {
	return fmt.Sprintf("%s:%d", b.DebugHost, b.DebugPort)
}

// DebugURL returns the HTTP base URL of the remote debugging endpoint.
func (b BrowserConfig) DebugURL() string {
	return "http://" + b.DebugAddr()
}

// Engine kinds.
const (
	EngineProcess = "process"
	EngineCDP     = "cdp"
)

// EngineConfig selects and tunes the automation engine that drives the workflow.
type EngineConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	// RunnerPath overrides npx discovery for the process engine.
	RunnerPath string `mapstructure:"runner_path" yaml:"runner_path"`
	// WorkDir is where generated scripts and run logs are written.
	WorkDir       string        `mapstructure:"work_dir" yaml:"work_dir"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	KeepArtifacts bool          `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
}

// VerificationConfig controls the human-in-the-loop gate.
type VerificationConfig struct {
	RuntimeDir string        `mapstructure:"runtime_dir" yaml:"runtime_dir"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AppealConfig holds the target form and the fixed text sent with every appeal.
type AppealConfig struct {
	TargetURL     string `mapstructure:"target_url" yaml:"target_url"`
	ComplaintText string `mapstructure:"complaint_text" yaml:"complaint_text"`
	// FilesRoot anchors the relative document paths stored with profiles and assets.
	FilesRoot string `mapstructure:"files_root" yaml:"files_root"`
}

// APIConfig configures the local control API.
type APIConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Set stores the process-wide configuration loaded by the root command.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the configuration stored by Set, or the defaults when nothing was loaded.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return NewDefaultConfig()
	}
	return instance
}

// NewDefaultConfig builds a Config from the registered defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rightsguard")
	v.SetDefault("logger.log_file", "rightsguard.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.debug_host", "127.0.0.1")
	v.SetDefault("browser.debug_port", 9222)
	v.SetDefault("browser.binary_path", "")
	v.SetDefault("browser.process_name", "")
	v.SetDefault("browser.user_data_dir", "~/.rightsguard/chrome-profile")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.probe_timeout", "5s")
	v.SetDefault("browser.poll_interval", "500ms")

	// -- Engine --
	v.SetDefault("engine.kind", EngineProcess)
	v.SetDefault("engine.runner_path", "")
	v.SetDefault("engine.work_dir", "~/.rightsguard/runs")
	v.SetDefault("engine.timeout", "15m")
	v.SetDefault("engine.keep_artifacts", false)

	// -- Verification --
	v.SetDefault("verification.runtime_dir", "~/.rightsguard")
	v.SetDefault("verification.timeout", "10m")

	// -- Appeal --
	v.SetDefault("appeal.target_url", "https://www.bilibili.com/v/copyright/apply?origin=home")
	v.SetDefault("appeal.complaint_text", "该链接内容侵犯了我的版权，要求立即删除。")
	v.SetDefault("appeal.files_root", "~/.rightsguard/files")

	// -- API --
	v.SetDefault("api.listen_addr", "127.0.0.1:7878")
	v.SetDefault("api.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("api.request_timeout", "30s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The database URL usually carries a password; allow a dedicated env var.
	_ = v.BindEnv("database.url", "RIGHTSGUARD_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.DebugPort <= 0 || c.BrowserCfg.DebugPort > 65535 {
		return fmt.Errorf("browser.debug_port must be between 1 and 65535")
	}
	if c.BrowserCfg.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be a positive duration")
	}
	if c.BrowserCfg.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must not be negative")
	}
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.VerificationCfg.Timeout <= 0 {
		return fmt.Errorf("verification.timeout must be a positive duration")
	}
	if strings.TrimSpace(c.AppealCfg.TargetURL) == "" {
		return fmt.Errorf("appeal.target_url is required")
	}
	return nil
}

// Validate checks the engine settings.
func (e *EngineConfig) Validate() error {
	switch e.Kind {
	case EngineProcess, EngineCDP:
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", EngineProcess, EngineCDP, e.Kind)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	return nil
}
