package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
)

// Config carries system-wide settings for both the snapshot server and the
// watch client. Precedence: defaults, then environment, then file.
type Config struct {
	HTTP    HTTPConfig    `json:"http"`
	Socket  SocketConfig  `json:"socket"`
	Sampler SamplerConfig `json:"sampler"`
	History HistoryConfig `json:"history"`
	Watch   WatchConfig   `json:"watch"`
}

type HTTPConfig struct {
	Host         string        `json:"host" env:"TOPCHAT_HTTP_HOST"`
	Port         int           `json:"port" env:"TOPCHAT_HTTP_PORT"`
	ReadTimeout  time.Duration `json:"-" env:"TOPCHAT_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"-" env:"TOPCHAT_HTTP_WRITE_TIMEOUT"`
}

type SocketConfig struct {
	WriteTimeout time.Duration `json:"-" env:"TOPCHAT_SOCKET_WRITE_TIMEOUT"`
	SendBuffer   int           `json:"send_buffer" env:"TOPCHAT_SOCKET_SEND_BUFFER"`
}

type SamplerConfig struct {
	Interval time.Duration `json:"-" env:"TOPCHAT_SAMPLE_INTERVAL"`
}

type HistoryConfig struct {
	Enabled bool          `json:"enabled" env:"TOPCHAT_HISTORY_ENABLED"`
	Path    string        `json:"path" env:"TOPCHAT_HISTORY_PATH"`
	Timeout time.Duration `json:"-" env:"TOPCHAT_HISTORY_TIMEOUT"`
}

type WatchConfig struct {
	Origin              string        `json:"origin" env:"TOPCHAT_WATCH_ORIGIN"`
	PortOverride        int           `json:"port_override" env:"TOPCHAT_WATCH_PORT_OVERRIDE"`
	Instances           int           `json:"instances" env:"TOPCHAT_WATCH_INSTANCES"`
	LogCapacity         int           `json:"log_capacity" env:"TOPCHAT_WATCH_LOG_CAPACITY"`
	AutoMessageInterval time.Duration `json:"-" env:"TOPCHAT_WATCH_AUTO_INTERVAL"`
}

// DefaultConfig returns the stock settings: port 7032, one snapshot per
// second, history disabled.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         7032,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Socket: SocketConfig{
			WriteTimeout: 5 * time.Second,
			SendBuffer:   16,
		},
		Sampler: SamplerConfig{
			Interval: time.Second,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "./topchat.db",
			Timeout: 30 * time.Second,
		},
		Watch: WatchConfig{
			Origin:              "http://127.0.0.1:7032",
			PortOverride:        0,
			Instances:           1,
			LogCapacity:         1000,
			AutoMessageInterval: 500 * time.Millisecond,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Socket.WriteTimeout <= 0 {
		return fmt.Errorf("socket write timeout must be positive")
	}
	if c.Socket.SendBuffer <= 0 {
		return fmt.Errorf("socket send buffer must be positive")
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history path cannot be empty when history is enabled")
	}
	if c.History.Enabled && c.History.Timeout <= 0 {
		return fmt.Errorf("history timeout must be positive")
	}
	if c.Watch.Origin == "" {
		return fmt.Errorf("watch origin cannot be empty")
	}
	if c.Watch.PortOverride < 0 || c.Watch.PortOverride > 65535 {
		return fmt.Errorf("watch port override must be between 0 and 65535")
	}
	if c.Watch.Instances < 0 {
		return fmt.Errorf("watch instances cannot be negative")
	}
	if c.Watch.LogCapacity < 0 {
		return fmt.Errorf("watch log capacity cannot be negative")
	}
	if c.Watch.AutoMessageInterval <= 0 {
		return fmt.Errorf("watch auto message interval must be positive")
	}
	return nil
}

// LoadFromEnv overlays environment variables onto the defaults.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config for JSON files, with durations as strings so a
// file can say "250ms" instead of nanosecond counts.
type fileConfig struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Socket *struct {
		WriteTimeout string `json:"write_timeout"`
		SendBuffer   int    `json:"send_buffer"`
	} `json:"socket"`
	Sampler *struct {
		Interval string `json:"interval"`
	} `json:"sampler"`
	History *struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"history"`
	Watch *struct {
		Origin              string `json:"origin"`
		PortOverride        int    `json:"port_override"`
		Instances           int    `json:"instances"`
		LogCapacity         *int   `json:"log_capacity"`
		AutoMessageInterval string `json:"auto_message_interval"`
	} `json:"watch"`
}

func overlayDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// LoadFromFile overlays a JSON file onto cfg and validates the result.
func LoadFromFile(cfg *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.HTTP != nil {
		if fc.HTTP.Host != "" {
			cfg.HTTP.Host = fc.HTTP.Host
		}
		if fc.HTTP.Port > 0 {
			cfg.HTTP.Port = fc.HTTP.Port
		}
		overlayDuration(&cfg.HTTP.ReadTimeout, fc.HTTP.ReadTimeout)
		overlayDuration(&cfg.HTTP.WriteTimeout, fc.HTTP.WriteTimeout)
	}
	if fc.Socket != nil {
		if fc.Socket.SendBuffer > 0 {
			cfg.Socket.SendBuffer = fc.Socket.SendBuffer
		}
		overlayDuration(&cfg.Socket.WriteTimeout, fc.Socket.WriteTimeout)
	}
	if fc.Sampler != nil {
		overlayDuration(&cfg.Sampler.Interval, fc.Sampler.Interval)
	}
	if fc.History != nil {
		cfg.History.Enabled = fc.History.Enabled
		if fc.History.Path != "" {
			cfg.History.Path = fc.History.Path
		}
		overlayDuration(&cfg.History.Timeout, fc.History.Timeout)
	}
	if fc.Watch != nil {
		if fc.Watch.Origin != "" {
			cfg.Watch.Origin = fc.Watch.Origin
		}
		if fc.Watch.PortOverride > 0 {
			cfg.Watch.PortOverride = fc.Watch.PortOverride
		}
		if fc.Watch.Instances > 0 {
			cfg.Watch.Instances = fc.Watch.Instances
		}
		if fc.Watch.LogCapacity != nil {
			cfg.Watch.LogCapacity = *fc.Watch.LogCapacity
		}
		overlayDuration(&cfg.Watch.AutoMessageInterval, fc.Watch.AutoMessageInterval)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves configuration with the standard precedence. An empty path
// skips the file layer.
func Load(path string) (*Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if cfg, err = LoadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
