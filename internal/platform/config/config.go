package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	apperrors "osl/internal/platform/errors"
)

const (
	envPrefix         = "OSL_"
	maxConfigFileSize = 1 << 20
)

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Config struct {
	Root     string    `koanf:"root"`
	StateDir string    `koanf:"state_dir"`
	VaultDir string    `koanf:"vault_dir"`
	DBPath   string    `koanf:"db_path"`
	Log      LogConfig `koanf:"log"`
}

// New loads configuration for the osl directory at root.
//
// Precedence, highest first: OSL_* environment variables, <root>/config/osl.yaml,
// defaults derived from root. OSL_LOG_LEVEL maps to log.level; OSL_STATE_DIR maps to state_dir.
func New(root string) (Config, error) {
	if strings.TrimSpace(root) == "" {
		return Config{}, apperrors.Wrap(apperrors.ErrInvalidInput, "osl root path is required")
	}
	k := koanf.New(".")

	path := FilePath(root)
	if info, err := os.Stat(path); err == nil {
		if info.Size() > maxConfigFileSize {
			return Config{}, apperrors.Newf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, apperrors.Wrap(err, "read config file")
		}
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return Config{}, apperrors.Wrapf(err, "load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, apperrors.Wrap(err, "load environment")
	}

	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, apperrors.Wrap(err, "unmarshal config")
	}
	if cfg.Root == "" {
		cfg.Root = root
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FilePath is where the optional YAML config lives under root.
func FilePath(root string) string {
	return filepath.Join(root, "config", "osl.yaml")
}

// envKey maps OSL_LOG_LEVEL to log.level and OSL_STATE_DIR to state_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if strings.HasPrefix(key, "log_") {
		return "log." + strings.TrimPrefix(key, "log_")
	}
	return key
}

func applyDefaults(cfg *Config) {
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.Root, "ai_state")
	}
	if cfg.VaultDir == "" {
		cfg.VaultDir = filepath.Join(cfg.Root, "obsidian")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.StateDir, "index.db")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func (c Config) Validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "log.format must be json or console, got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "log.level %q is not supported", c.Log.Level)
	}
	return nil
}
