package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config holds everything tarsdeck needs to reach a TARS server.
type Config struct {
	ServerURL             string `mapstructure:"server_url" toml:"server_url"`
	APIBase               string `mapstructure:"api_base" toml:"api_base"`
	WebSocketPath         string `mapstructure:"websocket_path" toml:"websocket_path"`
	ReconnectDelaySeconds int    `mapstructure:"reconnect_delay_seconds" toml:"reconnect_delay_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds"`
	HistoryRefreshSeconds int    `mapstructure:"history_refresh_seconds" toml:"history_refresh_seconds"`
	PageSize              int    `mapstructure:"page_size" toml:"page_size"`
	LogLevel              string `mapstructure:"log_level" toml:"log_level"`
	StateDir              string `mapstructure:"state_dir" toml:"state_dir"`
}

const (
	defaultConfigPath     = "~/.config/tarsdeck/config.toml"
	defaultServerURL      = "http://127.0.0.1:8888"
	defaultAPIBase        = "/unmanic/api/v2/"
	defaultWebSocketPath  = "/unmanic/websocket"
	defaultReconnectDelay = 5
	defaultRequestTimeout = 5
	defaultHistoryRefresh = 10
	defaultPageSize       = 30
	defaultLogLevel       = "info"
	defaultStateDir       = "~/.local/state/tarsdeck"

	envPrefix   = "TARSDECK"
	logFileName = "tarsdeck.log"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:             defaultServerURL,
		APIBase:               defaultAPIBase,
		WebSocketPath:         defaultWebSocketPath,
		ReconnectDelaySeconds: defaultReconnectDelay,
		RequestTimeoutSeconds: defaultRequestTimeout,
		HistoryRefreshSeconds: defaultHistoryRefresh,
		PageSize:              defaultPageSize,
		LogLevel:              defaultLogLevel,
		StateDir:              defaultStateDir,
	}
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load reads the config at path (or the default location), applies
// TARSDECK_* environment overrides and falls back to defaults for anything
// unset. A missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	def := Default()
	v := viper.New()
	v.SetConfigFile(resolved)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("api_base", def.APIBase)
	v.SetDefault("websocket_path", def.WebSocketPath)
	v.SetDefault("reconnect_delay_seconds", def.ReconnectDelaySeconds)
	v.SetDefault("request_timeout_seconds", def.RequestTimeoutSeconds)
	v.SetDefault("history_refresh_seconds", def.HistoryRefreshSeconds)
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("state_dir", def.StateDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize(def)
	return cfg, nil
}

// normalize trims values and replaces blanks and non-positive numbers with
// defaults.
func (c *Config) normalize(def Config) {
	c.ServerURL = orDefault(c.ServerURL, def.ServerURL)
	c.APIBase = orDefault(c.APIBase, def.APIBase)
	c.WebSocketPath = orDefault(c.WebSocketPath, def.WebSocketPath)
	c.LogLevel = strings.ToLower(orDefault(c.LogLevel, def.LogLevel))
	c.StateDir = mustExpand(orDefault(c.StateDir, def.StateDir))
	if c.ReconnectDelaySeconds <= 0 {
		c.ReconnectDelaySeconds = def.ReconnectDelaySeconds
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if c.HistoryRefreshSeconds <= 0 {
		c.HistoryRefreshSeconds = def.HistoryRefreshSeconds
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
}

// ReconnectDelay is the pause between websocket reconnect attempts.
func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// RequestTimeout bounds every REST call.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// HistoryRefresh is how often the REST-only history is reloaded.
func (c Config) HistoryRefresh() time.Duration {
	return time.Duration(c.HistoryRefreshSeconds) * time.Second
}

// LogPath is where logs go while the dashboard owns the terminal.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.StateDir) == "" {
		return filepath.Join(mustExpand(defaultStateDir), logFileName)
	}
	return filepath.Join(c.StateDir, logFileName)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default config to path (or the default location).
// An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) (string, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(resolved); err == nil {
			return resolved, fmt.Errorf("config %s already exists", resolved)
		}
	}
	data, err := Encode(Default())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return resolved, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
