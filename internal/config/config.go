// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes waits and timeouts for page interaction.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	WidgetTimeout     time.Duration `mapstructure:"widget_timeout" yaml:"widget_timeout"`
	ResponseTimeout   time.Duration `mapstructure:"response_timeout" yaml:"response_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
}

// TargetConfig identifies the chatbot under test and its query dataset.
type TargetConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Dataset string `mapstructure:"dataset" yaml:"dataset"`
}

// ProbeConfig controls the probe command's run behavior and artifacts.
type ProbeConfig struct {
	Output          string        `mapstructure:"output" yaml:"output"`
	Format          string        `mapstructure:"format" yaml:"format"`
	ArtifactsDir    string        `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	MessageInterval time.Duration `mapstructure:"message_interval" yaml:"message_interval"`
	Languages       []string      `mapstructure:"languages" yaml:"languages"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatprobe-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_agent", "")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.post_load_wait", "1500ms")
	v.SetDefault("network.widget_timeout", "15s")
	v.SetDefault("network.response_timeout", "30s")
	v.SetDefault("network.element_timeout", "10s")

	// -- Target --
	v.SetDefault("target.url", "https://uask.gov.ae")
	v.SetDefault("target.dataset", "data/queries.json")

	// -- Probe --
	v.SetDefault("probe.output", "")
	v.SetDefault("probe.format", "html")
	v.SetDefault("probe.artifacts_dir", "artifacts")
	v.SetDefault("probe.message_interval", "2s")
	v.SetDefault("probe.languages", []string{"english", "arabic"})
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
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
	if c.Target.URL == "" {
		return fmt.Errorf("target.url is a required configuration field")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.Network.ResponseTimeout <= 0 {
		return fmt.Errorf("network.response_timeout must be a positive duration")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	switch c.Probe.Format {
	case "html", "json":
	default:
		return fmt.Errorf("unsupported report format: %q", c.Probe.Format)
	}
	return nil
}
