package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "WORLDSINGLETON_CONFIG"

type Config struct {
	Singleton SingletonConfig `toml:"singleton"`
	Host      HostConfig      `toml:"host"`
	Scripting ScriptingConfig `toml:"scripting"`
	AsyncLoad AsyncLoadConfig `toml:"asyncload"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
}

type SingletonConfig struct {
	CreateMethod    int  `toml:"create_method"` // 0=game instance, 1=transient package
	HaltOnViolation bool `toml:"halt_on_violation"`
}

type HostConfig struct {
	Editor      bool          `toml:"editor"`
	Headless    bool          `toml:"headless"`
	Commandlet  bool          `toml:"commandlet"`
	ClassesFile string        `toml:"classes_file"`
	TickRate    time.Duration `toml:"tick_rate"`
	GCInterval  time.Duration `toml:"gc_interval"`
}

type ScriptingConfig struct {
	ScriptsDir string `toml:"scripts_dir"`
	HotReload  bool   `toml:"hot_reload"`
}

type AsyncLoadConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config { return defaults() }

// ResolvePath picks the config file: the flag value if set, else the
// environment override, else fallback.
func ResolvePath(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return fallback
}

func (c *Config) validate() error {
	if c.Singleton.CreateMethod != 0 && c.Singleton.CreateMethod != 1 {
		return fmt.Errorf("singleton.create_method must be 0 or 1, got %d", c.Singleton.CreateMethod)
	}
	if c.AsyncLoad.Workers < 1 {
		return fmt.Errorf("asyncload.workers must be at least 1, got %d", c.AsyncLoad.Workers)
	}
	if c.AsyncLoad.QueueSize < 1 {
		return fmt.Errorf("asyncload.queue_size must be at least 1, got %d", c.AsyncLoad.QueueSize)
	}
	if c.Host.TickRate <= 0 {
		return fmt.Errorf("host.tick_rate must be positive")
	}
	if c.Host.GCInterval <= 0 {
		return fmt.Errorf("host.gc_interval must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Singleton: SingletonConfig{
			CreateMethod: 0,
		},
		Host: HostConfig{
			ClassesFile: "config/classes.yaml",
			TickRate:    100 * time.Millisecond,
			GCInterval:  5 * time.Second,
		},
		Scripting: ScriptingConfig{
			ScriptsDir: "scripts",
		},
		AsyncLoad: AsyncLoadConfig{
			Workers:   2,
			QueueSize: 256,
		},
		Metrics: MetricsConfig{
			BindAddress: "127.0.0.1:9108",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
