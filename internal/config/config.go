// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvUserConfig names an optional user-level config file layered under the
// repository config.
const EnvUserConfig = "MINIGIT_CONFIG"

type Config struct {
	Author        string `json:"author" toml:"author" yaml:"author"`
	DefaultBranch string `json:"default_branch" toml:"default_branch" yaml:"default_branch"`
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"` // debug, info, warn, error

	Objects struct {
		CacheSize   int `json:"cache_size" toml:"cache_size" yaml:"cache_size"`
		Compression struct {
			Enabled bool `json:"enabled" toml:"enabled" yaml:"enabled"`
			Level   int  `json:"level" toml:"level" yaml:"level"`       // 1=fastest, 4=best
			MinSize int  `json:"min_size" toml:"min_size" yaml:"min_size"` // bytes
		} `json:"compression" toml:"compression" yaml:"compression"`
	} `json:"objects" toml:"objects" yaml:"objects"`

	Diff struct {
		ContextLines int `json:"context_lines" toml:"context_lines" yaml:"context_lines"`
	} `json:"diff" toml:"diff" yaml:"diff"`

	Ignore []string `json:"ignore" toml:"ignore" yaml:"ignore"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	cfg := &Config{
		Author:        "Unknown",
		DefaultBranch: "main",
		LogLevel:      "warn",
		Ignore:        []string{".git", "node_modules", "vendor"},
	}
	cfg.Objects.CacheSize = 1000
	cfg.Objects.Compression.Enabled = true
	cfg.Objects.Compression.Level = 2
	cfg.Objects.Compression.MinSize = 1024
	cfg.Diff.ContextLines = 3
	return cfg
}

// Load reads a single config file on top of the defaults. The decoder is
// picked from the file extension.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLayered decodes each existing file in order onto the defaults, so later
// files override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}
	return nil
}

// Save writes cfg as indented JSON via temp file + rename.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
