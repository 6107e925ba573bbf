package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const configFileName = "config.json"

// Config holds all application configuration.
type Config struct {
	DataDir       string        `json:"-"`
	DBPath        string        `json:"-"`
	LogFile       string        `json:"-"`
	LogLevel      slog.Level    `json:"-"`
	ProjectDir    string        `json:"-"`
	Editor        string        `json:"editor,omitempty"`
	StrictChains  bool          `json:"strict_chains"`
	WatchDebounce time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining working directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".quill")
	return Config{
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "quill.db"),
		LogFile:       filepath.Join(dataDir, "quill.log"),
		LogLevel:      slog.LevelInfo,
		ProjectDir:    cwd,
		Editor:        "vi",
		WatchDebounce: 300 * time.Millisecond,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	// The data dir decides where the config file lives, so it is
	// resolved from the environment first.
	if v := os.Getenv("QUILL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}

	cfg.DBPath = filepath.Join(cfg.DataDir, "quill.db")
	cfg.LogFile = filepath.Join(cfg.DataDir, "quill.log")
	if abs, err := filepath.Abs(cfg.ProjectDir); err == nil {
		cfg.ProjectDir = abs
	}
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Editor        string `json:"editor"`
		StrictChains  *bool  `json:"strict_chains"`
		LogLevel      string `json:"log_level"`
		WatchDebounce string `json:"watch_debounce"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Editor != "" {
		c.Editor = file.Editor
	}
	if file.StrictChains != nil {
		c.StrictChains = *file.StrictChains
	}
	if file.LogLevel != "" {
		c.LogLevel = ParseLogLevel(file.LogLevel)
	}
	if file.WatchDebounce != "" {
		d, err := time.ParseDuration(file.WatchDebounce)
		if err != nil {
			return fmt.Errorf("parsing watch_debounce: %w", err)
		}
		c.WatchDebounce = d
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("EDITOR"); v != "" {
		c.Editor = v
	}
	if v := os.Getenv("QUILL_EDITOR"); v != "" {
		c.Editor = v
	}
	if v := os.Getenv("QUILL_LOG_LEVEL"); v != "" {
		c.LogLevel = ParseLogLevel(v)
	}
	if v := os.Getenv("QUILL_STRICT_CHAINS"); v != "" {
		c.StrictChains = v == "1" || strings.EqualFold(v, "true")
	}
}

// RegisterFlags registers the flags shared by every command on
// fs. The caller must call fs.Parse before passing fs to Load.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("project", ".", "Project directory")
	fs.Bool(
		"strict", false,
		"Fail on broken parent links instead of truncating",
	)
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) error {
	if fs == nil {
		return nil
	}
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "project":
			cfg.ProjectDir = f.Value.String()
		case "strict":
			cfg.StrictChains = f.Value.String() == "true"
		case "log-level":
			cfg.LogLevel = ParseLogLevel(f.Value.String())
		case "debounce":
			d, perr := time.ParseDuration(f.Value.String())
			if perr != nil {
				err = fmt.Errorf("invalid -debounce: %w", perr)
				return
			}
			cfg.WatchDebounce = d
		}
	})
	return err
}

// ParseLogLevel maps a level name to a slog.Level. Unknown names
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SaveStrictChains persists the strict resolution flag to the
// config file, preserving any other keys already in it.
func (c *Config) SaveStrictChains(strict bool) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["strict_chains"] = strict
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.StrictChains = strict
	return nil
}
