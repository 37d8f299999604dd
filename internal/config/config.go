package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"macroexp/internal/macros"
	"macroexp/internal/trace"
)

// Config is the effective configuration of a run.
type Config struct {
	// Path is the file the configuration was read from, empty for defaults.
	Path   string       `toml:"-"`
	Macros MacrosConfig `toml:"macros"`
	Trace  TraceConfig  `toml:"trace"`
	Store  StoreConfig  `toml:"store"`
}

type MacrosConfig struct {
	Enabled   bool   `toml:"enabled"`
	NoExpand  bool   `toml:"no-expand"`
	Debug     string `toml:"debug"`
	FastTrack bool   `toml:"fast-track"`
	// PluginDir holds implementation plugins; empty disables plugin loading.
	PluginDir string `toml:"plugin-dir"`
}

type TraceConfig struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring-size"`
}

type StoreConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Macros: MacrosConfig{Enabled: true, Debug: "off", FastTrack: true},
		Trace:  TraceConfig{Level: "off", Mode: "ring", Format: "auto", Output: "-"},
		Store:  StoreConfig{Dir: filepath.Join(".macroexp", "bindings")},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("store", "dir") && strings.TrimSpace(cfg.Store.Dir) == "" {
		return Config{}, fmt.Errorf("%s: [store].dir must not be empty", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	// relative store directories are anchored at the file
	if !filepath.IsAbs(cfg.Store.Dir) {
		cfg.Store.Dir = filepath.Join(filepath.Dir(path), cfg.Store.Dir)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := macros.ParseDebugLevel(c.Macros.Debug); err != nil {
		return fmt.Errorf("[macros].debug: %w", err)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return fmt.Errorf("[trace].mode: %w", err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return fmt.Errorf("[trace].format: %w", err)
	}
	if c.Trace.RingSize < 0 {
		return fmt.Errorf("[trace].ring-size must not be negative")
	}
	return nil
}

// DebugLevel returns the parsed [macros].debug setting.
func (c Config) DebugLevel() macros.DebugLevel {
	l, err := macros.ParseDebugLevel(c.Macros.Debug)
	if err != nil {
		return macros.DebugOff
	}
	return l
}

// TracerConfig converts the [trace] table for trace.New.
func (c Config) TracerConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
	}, nil
}

// Apply copies the [macros] table into engine options.
func (c Config) Apply(opts *macros.Options) {
	opts.Disabled = !c.Macros.Enabled
	opts.NoExpand = c.Macros.NoExpand
	opts.NoFastTrack = !c.Macros.FastTrack
	opts.Debug = c.DebugLevel()
}

// Encode renders c as TOML.
func (c Config) Encode() (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", err
	}
	return sb.String(), nil
}
