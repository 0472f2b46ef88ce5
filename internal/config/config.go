package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Every recognized option is
// an explicit field; CLI flags override file values, defaults fill the rest.
type Config struct {
	SourcePath string      `yaml:"source_path"`
	Output     string      `yaml:"output"`
	Socket     string      `yaml:"socket"`
	Extensions []string    `yaml:"extensions,omitempty"`
	UID        int         `yaml:"uid"`
	Logging    Logging     `yaml:"logging"`
	Build      BuildConfig `yaml:"build"`
	Server     Server      `yaml:"server"`
	History    History     `yaml:"history"`
	Notify     Notify      `yaml:"notify"`
}

// BuildConfig configures the external build command invocation.
type BuildConfig struct {
	Command string        `yaml:"command"` // external renderer binary
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout"` // 0 = unlimited
	// Every optional periodic full rebuild; 0 disables the schedule.
	Every time.Duration `yaml:"every"`
}

// Server configures the web server lifecycle.
type Server struct {
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	Metrics       bool          `yaml:"metrics"`
	MetricsPath   string        `yaml:"metrics_path"`
}

// History configures the optional persisted build history.
type History struct {
	Path  string `yaml:"path,omitempty"` // sqlite file; empty disables
	Limit int    `yaml:"limit"`          // rows returned by the API
}

// Notify configures optional build event publishing.
type Notify struct {
	URL     string `yaml:"url,omitempty"` // NATS server; empty disables
	Subject string `yaml:"subject"`
}

// Logging configures log output.
type Logging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads configuration from an optional YAML file. A missing file is not
// an error; defaults and flag overrides still apply. Environment variables
// referenced in the YAML content are expanded before parsing.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.ApplyDefaults()
				return cfg, nil
			}
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field with the documented default.
func (c *Config) ApplyDefaults() {
	if c.SourcePath == "" {
		if wd, err := os.Getwd(); err == nil {
			c.SourcePath = wd
		} else {
			c.SourcePath = "."
		}
	}
	if c.Output == "" {
		c.Output = "html"
	}
	if c.Socket == "" {
		c.Socket = "localhost:8888"
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{"rst", "rst~", "txt", "txt~"}
	}
	if c.UID == 0 {
		c.UID = 1000
	}
	if c.Build.Command == "" {
		c.Build.Command = "sphinx-build"
	}
	if c.Build.Timeout < 0 {
		c.Build.Timeout = 0
	}
	if c.Server.ShutdownGrace <= 0 {
		c.Server.ShutdownGrace = 30 * time.Second
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.History.Limit <= 0 {
		c.History.Limit = 50
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "sphinxserve.builds"
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
}

// Validate checks the configuration for fatal problems before any task starts.
func (c *Config) Validate() error {
	host, port, err := net.SplitHostPort(c.Socket)
	if err != nil {
		return fmt.Errorf("invalid socket %q (want host:port): %w", c.Socket, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("invalid socket %q: host and port are both required", c.Socket)
	}
	if strings.ContainsAny(c.Output, `/\`) {
		return fmt.Errorf("output %q must be a directory name, not a path", c.Output)
	}
	return nil
}

// OutputDir returns the absolute path the external build writes into and the
// web server serves from.
func (c *Config) OutputDir() string {
	return filepath.Join(c.SourcePath, c.Output)
}
