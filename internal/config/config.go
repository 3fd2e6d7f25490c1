package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"orgls/internal/format"
	"orgls/internal/org"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TodoKeywords []string `json:"todoKeywords" yaml:"todoKeywords" toml:"todoKeywords" validate:"dive,required"`
	DoneKeywords []string `json:"doneKeywords" yaml:"doneKeywords" toml:"doneKeywords" validate:"dive,required"`
	FormatLists  bool     `json:"formatLists"  yaml:"formatLists"  toml:"formatLists"`
	// Index is the path of the sqlite headline index. Empty disables it.
	Index     string `json:"index"     yaml:"index"     toml:"index"`
	// ReindexMinutes rescans the workspace into the index this often.
	// Zero scans once at startup.
	ReindexMinutes int `json:"reindexMinutes" yaml:"reindexMinutes" toml:"reindexMinutes" validate:"min=0"`
	Addr      string `json:"addr"      yaml:"addr"      toml:"addr"      validate:"omitempty,hostname_port"`
	LogFile   string `json:"logFile"   yaml:"logFile"   toml:"logFile"`
	Verbosity int    `json:"verbosity" yaml:"verbosity" toml:"verbosity" validate:"min=0,max=5"`
}

var defaultConfig = Config{
	TodoKeywords: []string{"TODO"},
	DoneKeywords: []string{"DONE"},
	FormatLists:  true,
	Addr:         "127.0.0.1:4100",
	Verbosity:    1,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Default() Config {
	cfg := defaultConfig
	cfg.TodoKeywords = append([]string(nil), defaultConfig.TodoKeywords...)
	cfg.DoneKeywords = append([]string(nil), defaultConfig.DoneKeywords...)
	return cfg
}

// Load merges v, typically LSP initialization options, over the
// defaults. Only fields present in v overwrite.
func Load(v any) (Config, error) {
	return LoadOver(Default(), v)
}

// LoadOver merges v over base.
func LoadOver(base Config, v any) (Config, error) {
	cfg := base
	if v == nil {
		return cfg, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML, TOML or JSON file, picked by extension.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		return LoadFromJSON(bytes.NewReader(data))
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, k := range append(append([]string(nil), c.TodoKeywords...), c.DoneKeywords...) {
		if strings.ContainsAny(k, " \t") {
			return fmt.Errorf("invalid config: keyword %q contains whitespace", k)
		}
	}
	return nil
}

// ParseConfig returns the task keywords as a parse configuration.
func (c Config) ParseConfig() org.ParseConfig {
	return org.ParseConfig{TodoKeywords: c.TodoKeywords, DoneKeywords: c.DoneKeywords}
}

func (c Config) FormatOptions() format.Options {
	return format.Options{Lists: c.FormatLists}
}

// DefaultPath returns $XDG_CONFIG_HOME/orgls/config.yaml when that file
// exists, or "".
func DefaultPath() string {
	dir, err := configHome("orgls")
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Resolve loads path, or the default file when path is empty, or the
// defaults when neither exists.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return Default(), nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config file %s not found", path)
	}
	return cfg, err
}

func configHome(appName string) (string, error) {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, appName), nil
}
