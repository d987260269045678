package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/sproto/internal/logging"
	"github.com/danmuck/sproto/internal/protocol/session"
	"github.com/danmuck/sproto/internal/protocol/wire"
	"github.com/mitchellh/go-homedir"
)

// DefaultFile is the config file name looked up in the home directory.
const DefaultFile = ".sprotoctl.toml"

// Config holds sprotoctl settings.
type Config struct {
	Schema        string
	Envelope      string
	InitialBuffer int
	MaxBuffer     int
	MaxDepth      int
	LogLevel      string
}

type fileConfig struct {
	Schema        string `toml:"schema"`
	Envelope      string `toml:"envelope"`
	InitialBuffer int    `toml:"initial_buffer"`
	MaxBuffer     int    `toml:"max_buffer"`
	MaxDepth      int    `toml:"max_depth"`
	LogLevel      string `toml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Envelope:      session.DefaultEnvelope,
		InitialBuffer: wire.DefaultInitialSize,
		MaxBuffer:     wire.DefaultMaxSize,
		MaxDepth:      wire.DefaultMaxDepth,
		LogLevel:      "info",
	}
}

// DefaultPath returns ~/.sprotoctl.toml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultFile), nil
}

// Load overlays the keys present in path onto DefaultConfig. A relative
// schema path is resolved against the directory holding the config file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("config path %s: %w", path, err)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(expanded, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load sprotoctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("schema") {
		cfg.Schema = strings.TrimSpace(raw.Schema)
		if cfg.Schema != "" {
			if cfg.Schema, err = homedir.Expand(cfg.Schema); err != nil {
				return Config{}, fmt.Errorf("schema path: %w", err)
			}
			if !filepath.IsAbs(cfg.Schema) {
				cfg.Schema = filepath.Join(filepath.Dir(expanded), cfg.Schema)
			}
		}
	}
	if meta.IsDefined("envelope") {
		cfg.Envelope = strings.TrimSpace(raw.Envelope)
	}
	if meta.IsDefined("initial_buffer") {
		cfg.InitialBuffer = raw.InitialBuffer
	}
	if meta.IsDefined("max_buffer") {
		cfg.MaxBuffer = raw.MaxBuffer
	}
	if meta.IsDefined("max_depth") {
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Envelope) == "" {
		return fmt.Errorf("envelope is required")
	}
	if cfg.InitialBuffer <= 0 {
		return fmt.Errorf("initial_buffer must be positive")
	}
	if cfg.MaxBuffer < cfg.InitialBuffer {
		return fmt.Errorf("max_buffer %d is below initial_buffer %d", cfg.MaxBuffer, cfg.InitialBuffer)
	}
	if cfg.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive")
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}

// Codec returns the encoder options described by cfg.
func (c Config) Codec() wire.Options {
	return wire.Options{
		InitialSize: c.InitialBuffer,
		MaxSize:     c.MaxBuffer,
		MaxDepth:    c.MaxDepth,
	}
}
